package quiz

import (
	"fmt"
	"maps"
	"math"
	"time"

	"course-quiz-service/internal/domain"
)

// QuestionState is the tagged per-question state: Unanswered or Answered.
type QuestionState interface {
	isQuestionState()
}

// Unanswered is the initial state of every question.
type Unanswered struct{}

// Answered carries the committed answer. There is no way back to Unanswered.
type Answered struct {
	Answer domain.Answer
}

func (Unanswered) isQuestionState() {}
func (Answered) isQuestionState()   {}

// State is the full session state driven by Apply.
type State struct {
	Questions []domain.Question
	Policy    Policy
	Status    domain.SessionStatus
	Index     int
	Selected  int // tentative selection, -1 when none
	Answers   map[string]domain.Answer
	Elapsed   int // seconds, advanced by Tick while active
	Results   *domain.Results

	questionStart time.Time
	exitAt        time.Time
}

// NewState validates the questions and returns the initial state.
func NewState(questions []domain.Question, policy Policy, now time.Time) (State, error) {
	if err := domain.ValidateQuestions(questions); err != nil {
		return State{}, err
	}
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	return State{
		Questions:     qs,
		Policy:        policy,
		Status:        domain.StatusActive,
		Selected:      -1,
		Answers:       make(map[string]domain.Answer, len(qs)),
		questionStart: now,
	}, nil
}

// Current returns the visible question.
func (s State) Current() domain.Question {
	return s.Questions[s.Index]
}

// QuestionState returns the tagged state of the question at index i.
func (s State) QuestionState(i int) QuestionState {
	if a, ok := s.Answers[s.Questions[i].ID]; ok {
		return Answered{Answer: a}
	}
	return Unanswered{}
}

// IsLast reports whether the visible question is the final one.
func (s State) IsLast() bool {
	return s.Index == len(s.Questions)-1
}

func (s State) currentAnswer() (domain.Answer, bool) {
	a, ok := s.Answers[s.Current().ID]
	return a, ok
}

// Action is a discrete user (or timer) event.
type Action interface {
	isAction()
}

type (
	Select      struct{ Index int }
	Submit      struct{}
	Next        struct{}
	Previous    struct{}
	Finish      struct{}
	RequestExit struct{}
	ConfirmExit struct{}
	CancelExit  struct{}
	Tick        struct{}
)

func (Select) isAction()      {}
func (Submit) isAction()      {}
func (Next) isAction()        {}
func (Previous) isAction()    {}
func (Finish) isAction()      {}
func (RequestExit) isAction() {}
func (ConfirmExit) isAction() {}
func (CancelExit) isAction()  {}
func (Tick) isAction()        {}

// Effect tells the caller what, if anything, has to happen outside the state.
type Effect int

const (
	EffectNone Effect = iota
	EffectAnswered
	EffectCompleted
	EffectExited
)

// Apply is the pure transition function. The input state is never modified;
// on error the returned state is the input state.
func Apply(s State, a Action, now time.Time) (State, Effect, error) {
	if s.Status.Terminal() {
		if _, ok := a.(Tick); ok {
			return s, EffectNone, nil
		}
		return s, EffectNone, domain.ErrSessionClosed
	}

	if s.Status == domain.StatusExitRequested {
		switch a.(type) {
		case Tick, RequestExit:
			return s, EffectNone, nil
		case CancelExit:
			next := s
			next.Status = domain.StatusActive
			// Time spent on the prompt does not count against the question.
			next.questionStart = s.questionStart.Add(now.Sub(s.exitAt))
			next.exitAt = time.Time{}
			return next, EffectNone, nil
		case ConfirmExit:
			next := s
			next.Status = domain.StatusExited
			next.Answers = nil
			next.Selected = -1
			return next, EffectExited, nil
		default:
			return s, EffectNone, domain.ErrExitPending
		}
	}

	switch act := a.(type) {
	case Tick:
		next := s
		next.Elapsed++
		return next, EffectNone, nil
	case Select:
		if _, answered := s.currentAnswer(); answered {
			return s, EffectNone, domain.ErrAlreadyAnswered
		}
		if act.Index < 0 || act.Index >= len(s.Current().Options) {
			return s, EffectNone, domain.ErrOptionOutOfRange
		}
		next := s
		next.Selected = act.Index
		return next, EffectNone, nil
	case Submit:
		return submit(s, now)
	case Next:
		if _, answered := s.currentAnswer(); !answered {
			return s, EffectNone, domain.ErrNotAnswered
		}
		if s.IsLast() {
			return complete(s)
		}
		return moveTo(s, s.Index+1, now), EffectNone, nil
	case Previous:
		if s.Index == 0 {
			return s, EffectNone, nil
		}
		return moveTo(s, s.Index-1, now), EffectNone, nil
	case Finish:
		if !s.IsLast() {
			return s, EffectNone, domain.ErrNotLastQuestion
		}
		if _, answered := s.currentAnswer(); !answered {
			return s, EffectNone, domain.ErrNotAnswered
		}
		return complete(s)
	case RequestExit:
		next := s
		next.Status = domain.StatusExitRequested
		next.exitAt = now
		return next, EffectNone, nil
	case ConfirmExit, CancelExit:
		return s, EffectNone, domain.ErrExitNotRequested
	default:
		return s, EffectNone, fmt.Errorf("unknown action %T", a)
	}
}

func submit(s State, now time.Time) (State, Effect, error) {
	if _, answered := s.currentAnswer(); answered {
		return s, EffectNone, domain.ErrAlreadyAnswered
	}
	if s.Selected < 0 {
		return s, EffectNone, domain.ErrNoSelection
	}
	q := s.Current()
	if s.Selected >= len(q.Options) {
		return s, EffectNone, &domain.ActionError{Kind: domain.KindSubmission, Err: domain.ErrOptionOutOfRange}
	}

	spent := int(math.Round(now.Sub(s.questionStart).Seconds()))
	if spent < 0 {
		spent = 0
	}
	answer := domain.Answer{
		QuestionID:     q.ID,
		SelectedAnswer: s.Selected,
		IsCorrect:      s.Selected == q.CorrectAnswer,
		TimeSpent:      spent,
		Timestamp:      now,
	}

	next := s
	next.Answers = maps.Clone(s.Answers)
	if next.Answers == nil {
		next.Answers = make(map[string]domain.Answer, 1)
	}
	next.Answers[q.ID] = answer
	return next, EffectAnswered, nil
}

func complete(s State) (State, Effect, error) {
	results, err := Score(s.Questions, s.Answers, s.Elapsed, s.Policy)
	if err != nil {
		return s, EffectNone, &domain.ActionError{Kind: domain.KindCompletion, Err: err}
	}
	next := s
	next.Status = domain.StatusCompleted
	next.Results = &results
	return next, EffectCompleted, nil
}

// moveTo shows question i. Answered questions restore their stored selection;
// unanswered ones start their own clock.
func moveTo(s State, i int, now time.Time) State {
	next := s
	next.Index = i
	if a, ok := next.currentAnswer(); ok {
		next.Selected = a.SelectedAnswer
		return next
	}
	next.Selected = -1
	next.questionStart = now
	return next
}
