package cli

import (
	"fmt"

	"course-quiz-service/internal/config"
	"course-quiz-service/internal/domain"
	"course-quiz-service/internal/infra/memory"
	"course-quiz-service/internal/quiz"
	"course-quiz-service/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewPlayCmd runs a single quiz session in the terminal.
func NewPlayCmd() *cobra.Command {
	var file, quizID string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take a quiz from a YAML file in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, file, quizID)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML quiz file")
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id when the file holds several quizzes")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPlay(cmd *cobra.Command, file, quizID string) error {
	quizzes, err := memory.ReadQuizFile(file)
	if err != nil {
		return err
	}
	content, err := pickQuiz(quizzes, quizID)
	if err != nil {
		return err
	}

	policy := quiz.DefaultPolicy
	if cfg, err := config.Load(configPath); err == nil {
		policy = quiz.Policy{WeakBelow: cfg.Scoring.WeakBelow, StrongAt: cfg.Scoring.StrongAt}
	}

	// the session logs nowhere while the terminal UI owns the screen
	session, err := quiz.New(content.Questions, quiz.Config{
		ID:            uuid.NewString(),
		QuizID:        content.ID,
		CategoryTitle: content.CategoryTitle,
		Policy:        policy,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	final, err := tea.NewProgram(tui.NewModel(session), tea.WithOutput(cmd.OutOrStdout())).Run()
	if err != nil {
		return err
	}
	model := final.(tui.Model)

	out := cmd.OutOrStdout()
	if results, ok := model.Results(); ok {
		logger.Info("quiz completed", zap.String("quiz", content.ID), zap.Int("score", results.Score))
		fmt.Fprintln(out, tui.RenderResults(content.CategoryTitle, results))
		return nil
	}
	if model.Exited() {
		fmt.Fprintln(out, "Quiz abandoned, answers discarded.")
	}
	return nil
}

func pickQuiz(quizzes []domain.Quiz, quizID string) (domain.Quiz, error) {
	if quizID == "" {
		if len(quizzes) == 1 {
			return quizzes[0], nil
		}
		return domain.Quiz{}, fmt.Errorf("file holds %d quizzes, pick one with --quiz", len(quizzes))
	}
	for _, q := range quizzes {
		if q.ID == quizID {
			return q, nil
		}
	}
	return domain.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, domain.ErrQuizNotFound)
}
