package app

import (
	"context"
	"fmt"
	"time"

	"course-quiz-service/internal/domain"
	"course-quiz-service/internal/quiz"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Add(session *quiz.Session)
	Get(sessionID string) (*quiz.Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// Invalidate drops cached content so the next read hits the backing store.
	Invalidate(ctx context.Context, quizID string) error
}

// ResultRepository persists the results of completed sessions.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.SessionResult) error
	GetResult(ctx context.Context, sessionID string) (domain.SessionResult, error)
}

// EventPublisher notifies other services when sessions end.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Options tune the sessions created by the service. Zero values fall back to defaults.
type Options struct {
	Policy       quiz.Policy
	TickInterval time.Duration
	NewTicker    quiz.TickerFactory
	Clock        func() time.Time
	SaveTimeout  time.Duration
	NewID        func() string
	Publisher    EventPublisher
	Logger       *zap.Logger
}

// QuizService hosts quiz-taking sessions and wires their callbacks to
// persistence and events.
type QuizService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	results   ResultRepository
	publisher EventPublisher
	opts      Options
	logger    *zap.Logger
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, results ResultRepository, opts Options) *QuizService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &QuizService{
		sessions:  store,
		quizzes:   quizzes,
		results:   results,
		publisher: publisher,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Start opens a new session on a quiz for a user.
func (s *QuizService) Start(ctx context.Context, quizID, userID string) (domain.SessionView, error) {
	content, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionView{}, err
	}

	id := s.opts.NewID()
	owner := sessionOwner{id: id, quizID: quizID, userID: userID, title: content.CategoryTitle}
	session, err := quiz.New(content.Questions, quiz.Config{
		ID:            id,
		QuizID:        quizID,
		CategoryTitle: content.CategoryTitle,
		OnComplete:    func(r domain.Results) { s.completed(owner, r) },
		OnExit:        func() { s.exited(owner) },
		Policy:        s.opts.Policy,
		TickInterval:  s.opts.TickInterval,
		NewTicker:     s.opts.NewTicker,
		Clock:         s.opts.Clock,
		Logger:        s.logger,
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	s.sessions.Add(session)
	s.logger.Info("session started",
		zap.String("session", id),
		zap.String("quiz", quizID),
		zap.String("user", userID),
		zap.Int("questions", len(content.Questions)))
	return session.View(), nil
}

func (s *QuizService) Select(_ context.Context, sessionID string, option int) (domain.SessionView, error) {
	return s.do(sessionID, func(q *quiz.Session) (domain.SessionView, error) { return q.SelectOption(option) })
}

func (s *QuizService) Submit(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).Submit)
}

func (s *QuizService) Next(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).Next)
}

func (s *QuizService) Previous(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).Previous)
}

func (s *QuizService) Finish(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).Finish)
}

func (s *QuizService) RequestExit(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).RequestExit)
}

func (s *QuizService) ConfirmExit(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).ConfirmExit)
}

func (s *QuizService) CancelExit(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).CancelExit)
}

func (s *QuizService) Retry(_ context.Context, sessionID string) (domain.SessionView, error) {
	return s.do(sessionID, (*quiz.Session).Retry)
}

// View returns the current snapshot of a live session.
func (s *QuizService) View(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives session snapshots on every tick
// and action. The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionView, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Abandon tears a live session down without scoring it, e.g. when the
// player's connection drops.
func (s *QuizService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
	s.logger.Info("session abandoned", zap.String("session", sessionID))
}

// ReloadQuiz drops the cached copy of a quiz after its content changed.
// Live sessions keep the questions they started with.
func (s *QuizService) ReloadQuiz(ctx context.Context, quizID string) error {
	if err := s.quizzes.Invalidate(ctx, quizID); err != nil {
		return fmt.Errorf("invalidate quiz %s: %w", quizID, err)
	}
	s.logger.Info("quiz cache invalidated", zap.String("quiz", quizID))
	return nil
}

// Results returns the stored results of a completed session.
func (s *QuizService) Results(ctx context.Context, sessionID string) (domain.SessionResult, error) {
	return s.results.GetResult(ctx, sessionID)
}

func (s *QuizService) do(sessionID string, action func(*quiz.Session) (domain.SessionView, error)) (domain.SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return action(session)
}

type sessionOwner struct {
	id     string
	quizID string
	userID string
	title  string
}

func (s *QuizService) completed(owner sessionOwner, results domain.Results) {
	defer s.sessions.Delete(owner.id)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()

	now := s.opts.Clock()
	record := domain.SessionResult{
		SessionID:     owner.id,
		QuizID:        owner.quizID,
		UserID:        owner.userID,
		CategoryTitle: owner.title,
		Results:       results,
		CompletedAt:   now,
	}
	if err := s.results.SaveResult(ctx, record); err != nil {
		s.logger.Error("save results failed", zap.String("session", owner.id), zap.Error(err))
	}
	s.publish(ctx, domain.Event{
		Type:      domain.EventCompleted,
		SessionID: owner.id,
		QuizID:    owner.quizID,
		UserID:    owner.userID,
		At:        now,
		Payload:   results,
	})
}

func (s *QuizService) exited(owner sessionOwner) {
	defer s.sessions.Delete(owner.id)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()
	s.publish(ctx, domain.Event{
		Type:      domain.EventExited,
		SessionID: owner.id,
		QuizID:    owner.quizID,
		UserID:    owner.userID,
		At:        s.opts.Clock(),
	})
}

func (s *QuizService) publish(ctx context.Context, event domain.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", event.Type), zap.String("session", event.SessionID), zap.Error(err))
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }
