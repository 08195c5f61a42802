// Package tui plays a single quiz session in the terminal.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"course-quiz-service/internal/domain"
	"course-quiz-service/internal/quiz"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type viewMsg domain.SessionView

type closedMsg struct{}

// Model drives a quiz.Session from key presses and renders its view.
type Model struct {
	session *quiz.Session
	updates <-chan domain.SessionView
	cancel  func()

	view   domain.SessionView
	cursor int
	notice string
	width  int
	done   bool
}

func NewModel(session *quiz.Session) Model {
	updates, cancel := session.Subscribe()
	view := session.View()
	return Model{session: session, updates: updates, cancel: cancel, view: view}
}

func (m Model) Init() tea.Cmd {
	return waitForView(m.updates)
}

func waitForView(ch <-chan domain.SessionView) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return viewMsg(v)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case viewMsg:
		m.view = domain.SessionView(msg)
		return m, waitForView(m.updates)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.cancel()
		m.session.Close()
		m.done = true
		return m, tea.Quit
	}

	if m.view.ExitPrompt {
		switch key {
		case "y":
			return m.apply(m.session.ConfirmExit())
		case "n", "esc":
			return m.apply(m.session.CancelExit())
		}
		return m, nil
	}

	switch key {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		index := int(key[0] - '1')
		m.cursor = index
		return m.apply(m.session.SelectOption(index))
	case "up", "k":
		return m.moveCursor(-1)
	case "down", "j":
		return m.moveCursor(1)
	case "enter", " ":
		if m.view.Answer != nil {
			return m.apply(m.session.Next())
		}
		if m.view.Selected == nil {
			return m.apply(m.session.SelectOption(m.cursor))
		}
		return m.apply(m.session.Submit())
	case "left", "h":
		return m.apply(m.session.Previous())
	case "right", "l":
		return m.apply(m.session.Next())
	case "f":
		return m.apply(m.session.Finish())
	case "r":
		return m.apply(m.session.Retry())
	case "d":
		m.view = m.session.DismissError()
		m.notice = ""
		return m, nil
	case "q", "esc":
		return m.apply(m.session.RequestExit())
	}
	return m, nil
}

func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	if m.view.Answer != nil {
		return m, nil
	}
	n := len(m.view.Question.Options)
	if n == 0 {
		return m, nil
	}
	m.cursor = (m.cursor + delta + n) % n
	return m.apply(m.session.SelectOption(m.cursor))
}

func (m Model) apply(view domain.SessionView, err error) (tea.Model, tea.Cmd) {
	prevQuestion := m.view.Question.ID
	m.view = view
	m.notice = ""
	var actionErr *domain.ActionError
	if err != nil && !errors.As(err, &actionErr) {
		// action errors render from the view
		m.notice = err.Error()
	}
	if view.Question.ID != prevQuestion {
		m.cursor = 0
	}
	if view.Selected != nil {
		m.cursor = *view.Selected
	}
	if view.Status.Terminal() {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// Results returns the final results if the player finished the quiz.
func (m Model) Results() (domain.Results, bool) {
	return m.session.Results()
}

// Exited reports whether the player left without finishing.
func (m Model) Exited() bool {
	return m.view.Status == domain.StatusExited
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	v := m.view
	var b strings.Builder

	b.WriteString(titleStyle.Render(v.CategoryTitle))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("Question %d/%d  %s  %s  %d pts  %s",
		v.Index+1, v.Total, v.Question.Difficulty, v.Question.Topic, v.Question.Points, clock(v.ElapsedSeconds))))
	b.WriteString("\n")
	b.WriteString(progressBar(v.Progress, 30))
	b.WriteString("\n")
	b.WriteString(promptStyle.Render(v.Question.Prompt))
	b.WriteString("\n")

	for i, opt := range v.Question.Options {
		marker := "  "
		if i == m.cursor && v.Answer == nil {
			marker = "> "
		}
		line := fmt.Sprintf("%s%d. %s", marker, i+1, opt)
		switch {
		case v.Answer != nil && v.Question.CorrectAnswer != nil && i == *v.Question.CorrectAnswer:
			line = correctStyle.Render(line + "  ✓")
		case v.Answer != nil && i == v.Answer.SelectedAnswer:
			line = wrongStyle.Render(line + "  ✗")
		case v.Selected != nil && i == *v.Selected:
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if v.Answer != nil && v.Question.Explanation != "" {
		b.WriteString("\n")
		b.WriteString(metaStyle.Render(v.Question.Explanation))
		b.WriteString("\n")
	}
	if v.Error != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(v.Error + "\n[r] retry  [d] dismiss"))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(wrongStyle.Render(m.notice))
		b.WriteString("\n")
	}
	if v.ExitPrompt {
		b.WriteString("\n")
		b.WriteString(dialogStyle.Render("Quit the quiz? Your answers will be lost.\n[y] yes  [n] no"))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(help(v)))
	return b.String()
}

func help(v domain.SessionView) string {
	parts := []string{"1-9/↑↓ select", "enter submit"}
	if v.Answer != nil {
		parts[1] = "enter next"
		if v.IsLast {
			parts[1] = "enter finish"
		}
	}
	if v.CanGoPrevious {
		parts = append(parts, "← previous")
	}
	return strings.Join(append(parts, "q quit"), "  ")
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.JoinHorizontal(lipgloss.Top, selectedStyle.Render(bar), metaStyle.Render(fmt.Sprintf(" %d%%", percent)))
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// RenderResults formats a completed session's results.
func RenderResults(title string, r domain.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", titleStyle.Render(title))
	fmt.Fprintf(&b, "Score: %d%%  (%d/%d correct)\n", r.Score, r.CorrectAnswers, r.TotalQuestions)
	fmt.Fprintf(&b, "Time:  %s\n", clock(r.TotalTime))
	if len(r.StrongAreas) > 0 {
		fmt.Fprintf(&b, "\n%s %s", correctStyle.Render("Strong areas:"), strings.Join(r.StrongAreas, ", "))
	}
	if len(r.WeakAreas) > 0 {
		fmt.Fprintf(&b, "\n%s %s", wrongStyle.Render("Needs review:"), strings.Join(r.WeakAreas, ", "))
	}
	return boxStyle.Render(b.String())
}
