package quiz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"course-quiz-service/internal/domain"
	"go.uber.org/zap"
)

// Config wires a session to its owner.
type Config struct {
	ID            string
	QuizID        string
	CategoryTitle string
	// OnComplete receives the results exactly once, on normal completion only.
	OnComplete func(domain.Results)
	// OnExit is called exactly once, only when the player confirms exit.
	OnExit func()

	Policy       Policy
	TickInterval time.Duration
	NewTicker    TickerFactory
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Session is one pass through a fixed question set. All mutations are
// serialized; the timer goroutine is the only other writer.
type Session struct {
	id     string
	quizID string
	title  string
	now    func() time.Time
	apply  func(State, Action, time.Time) (State, Effect, error)
	logger *zap.Logger

	onComplete func(domain.Results)
	onExit     func()

	mu          sync.Mutex
	state       State
	lastErr     *domain.ActionError
	lastAction  Action
	closed      bool
	subscribers map[chan domain.SessionView]struct{}

	timer *Timer
}

// New validates the questions and starts the session clock.
func New(questions []domain.Question, cfg Config) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewStdTicker
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	state, err := NewState(questions, cfg.Policy, cfg.Clock())
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:          cfg.ID,
		quizID:      cfg.QuizID,
		title:       cfg.CategoryTitle,
		now:         cfg.Clock,
		apply:       Apply,
		logger:      cfg.Logger.With(zap.String("session", cfg.ID)),
		onComplete:  cfg.OnComplete,
		onExit:      cfg.OnExit,
		state:       state,
		subscribers: make(map[chan domain.SessionView]struct{}),
	}
	s.timer = startTimer(cfg.NewTicker, cfg.TickInterval, s.tick)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SelectOption tentatively selects an option on the current question.
func (s *Session) SelectOption(index int) (domain.SessionView, error) {
	return s.dispatch(Select{Index: index})
}

// Submit commits the selected option as the answer to the current question.
func (s *Session) Submit() (domain.SessionView, error) {
	return s.dispatch(Submit{})
}

// Next moves forward; on the answered last question it completes the session.
func (s *Session) Next() (domain.SessionView, error) {
	return s.dispatch(Next{})
}

// Previous moves back one question, staying put on the first.
func (s *Session) Previous() (domain.SessionView, error) {
	return s.dispatch(Previous{})
}

// Finish completes the session from the answered last question.
func (s *Session) Finish() (domain.SessionView, error) {
	return s.dispatch(Finish{})
}

// RequestExit opens the exit confirmation and pauses the clock.
func (s *Session) RequestExit() (domain.SessionView, error) {
	return s.dispatch(RequestExit{})
}

// ConfirmExit ends the session without results.
func (s *Session) ConfirmExit() (domain.SessionView, error) {
	return s.dispatch(ConfirmExit{})
}

// CancelExit closes the exit confirmation and resumes where the player was.
func (s *Session) CancelExit() (domain.SessionView, error) {
	return s.dispatch(CancelExit{})
}

// Retry re-runs the action that left the session in an error state.
func (s *Session) Retry() (domain.SessionView, error) {
	s.mu.Lock()
	if s.lastErr == nil {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, domain.ErrNothingToRetry
	}
	action := s.lastAction
	s.mu.Unlock()
	return s.dispatch(action)
}

// DismissError clears the error state without retrying.
func (s *Session) DismissError() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
	s.lastAction = nil
	view := s.viewLocked()
	s.broadcastLocked(view)
	return view
}

// View returns the current render snapshot.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Results returns the final results once the session has completed.
func (s *Session) Results() (domain.Results, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Results == nil {
		return domain.Results{}, false
	}
	return *s.state.Results, true
}

// Done reports whether the session no longer accepts actions.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down: the timer stops, subscribers are released,
// and neither callback is invoked. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.timer.Stop()
		return
	}
	s.closed = true
	subs := s.takeSubscribersLocked()
	s.mu.Unlock()

	s.timer.Stop()
	closeAll(subs)
	s.logger.Debug("session torn down")
}

// Subscribe returns a channel receiving a view on every tick and mutation.
// The channel is closed when the session ends; the caller must invoke cancel
// to stop listening earlier.
func (s *Session) Subscribe() (<-chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)

	s.mu.Lock()
	initial := s.viewLocked()
	if s.closed {
		s.mu.Unlock()
		ch <- initial
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- initial
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) dispatch(a Action) (domain.SessionView, error) {
	s.mu.Lock()
	if s.closed {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, domain.ErrSessionClosed
	}

	next, effect, err := s.safeApply(a)
	if err != nil {
		var actionErr *domain.ActionError
		if errors.As(err, &actionErr) {
			s.lastErr = actionErr
			s.lastAction = a
			s.logger.Warn("recoverable session error", zap.String("kind", string(actionErr.Kind)), zap.Error(actionErr.Err))
		}
		view := s.viewLocked()
		s.broadcastLocked(view)
		s.mu.Unlock()
		return view, err
	}

	// a pending error belongs to the question and status it was raised on
	moved := next.Index != s.state.Index || next.Status != s.state.Status
	s.state = next
	if moved || effect == EffectAnswered || effect == EffectCompleted {
		s.lastErr = nil
		s.lastAction = nil
	}
	view := s.viewLocked()
	s.broadcastLocked(view)

	var subs []chan domain.SessionView
	var results domain.Results
	terminal := effect == EffectCompleted || effect == EffectExited
	if terminal {
		s.closed = true
		subs = s.takeSubscribersLocked()
		if next.Results != nil {
			results = *next.Results
		}
	}
	if effect == EffectAnswered {
		a := next.Answers[next.Current().ID]
		s.logger.Debug("answer committed", zap.String("question", a.QuestionID), zap.Bool("correct", a.IsCorrect), zap.Int("timeSpent", a.TimeSpent))
	}
	s.mu.Unlock()

	if !terminal {
		return view, nil
	}

	s.timer.Stop()
	closeAll(subs)
	switch effect {
	case EffectCompleted:
		s.logger.Info("session completed", zap.Int("score", results.Score), zap.Int("totalTime", results.TotalTime))
		if s.onComplete != nil {
			s.onComplete(results)
		}
	case EffectExited:
		s.logger.Info("session exited")
		if s.onExit != nil {
			s.onExit()
		}
	}
	return view, nil
}

// safeApply converts a panic inside the transition into a recoverable error
// so committed answers survive.
func (s *Session) safeApply(a Action) (next State, effect Effect, err error) {
	defer func() {
		if r := recover(); r != nil {
			kind := domain.KindSubmission
			switch a.(type) {
			case Next, Finish:
				kind = domain.KindCompletion
			}
			next, effect = s.state, EffectNone
			err = &domain.ActionError{Kind: kind, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return s.apply(s.state, a, s.now())
}

func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	next, _, err := Apply(s.state, Tick{}, s.now())
	if err != nil || next.Elapsed == s.state.Elapsed {
		return
	}
	s.state = next
	s.broadcastLocked(s.viewLocked())
}

func (s *Session) viewLocked() domain.SessionView {
	st := s.state
	q := st.Current()
	view := domain.SessionView{
		SessionID:      s.id,
		QuizID:         s.quizID,
		CategoryTitle:  s.title,
		Status:         st.Status,
		Index:          st.Index,
		Total:          len(st.Questions),
		Answered:       len(st.Answers),
		CanGoPrevious:  st.Index > 0 && !st.Status.Terminal(),
		IsLast:         st.IsLast(),
		ElapsedSeconds: st.Elapsed,
		ExitPrompt:     st.Status == domain.StatusExitRequested,
		Question: domain.QuestionView{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			Difficulty: q.Difficulty,
			Topic:      q.Topic,
			Points:     q.Points,
		},
	}
	if st.Results != nil {
		res := *st.Results
		view.Results = &res
		view.Answered = len(res.Answers)
	}
	view.Progress = view.Answered * 100 / view.Total
	if st.Selected >= 0 {
		sel := st.Selected
		view.Selected = &sel
	}
	if answered, ok := st.QuestionState(st.Index).(Answered); ok {
		a := answered.Answer
		correct := q.CorrectAnswer
		view.Answer = &a
		view.Question.CorrectAnswer = &correct
		view.Question.Explanation = q.Explanation
		view.CanGoNext = st.Status == domain.StatusActive
	}
	if s.lastErr != nil {
		view.Error = s.lastErr.Error()
		view.Retryable = true
	}
	return view
}

func (s *Session) broadcastLocked(view domain.SessionView) {
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// drop the stale view so slow readers always see the latest one
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

func (s *Session) takeSubscribersLocked() []chan domain.SessionView {
	subs := make([]chan domain.SessionView, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subs = append(subs, ch)
		delete(s.subscribers, ch)
	}
	return subs
}

func closeAll(subs []chan domain.SessionView) {
	for _, ch := range subs {
		close(ch)
	}
}
