package app_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"course-quiz-service/internal/app"
	"course-quiz-service/internal/domain"
	"course-quiz-service/internal/infra/memory"
	"course-quiz-service/internal/quiz"
)

func TestStartAndCompleteSavesResults(t *testing.T) {
	ctx := context.Background()
	service, results, events := newTestService(t)

	view, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.SessionID != "s-1" || view.Total != 2 || view.CategoryTitle != "Python pour la Data Science" {
		t.Fatalf("unexpected initial view: %+v", view)
	}

	id := view.SessionID
	mustDo(t, func() (domain.SessionView, error) { return service.Select(ctx, id, 1) })
	view = mustDo(t, func() (domain.SessionView, error) { return service.Submit(ctx, id) })
	if view.Answer == nil || !view.Answer.IsCorrect {
		t.Fatalf("expected correct answer recorded, got %+v", view.Answer)
	}
	mustDo(t, func() (domain.SessionView, error) { return service.Next(ctx, id) })
	mustDo(t, func() (domain.SessionView, error) { return service.Select(ctx, id, 0) })
	mustDo(t, func() (domain.SessionView, error) { return service.Submit(ctx, id) })
	view = mustDo(t, func() (domain.SessionView, error) { return service.Finish(ctx, id) })
	if view.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", view.Status)
	}

	stored, err := results.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("results not saved: %v", err)
	}
	if stored.UserID != "u1" || stored.QuizID != "quiz-1" {
		t.Fatalf("unexpected owner on result: %+v", stored)
	}
	if stored.Results.Score != 50 || stored.Results.CorrectAnswers != 1 || stored.Results.TotalQuestions != 2 {
		t.Fatalf("unexpected results: %+v", stored.Results)
	}
	if got, err := service.Results(ctx, id); err != nil || got.Results.Score != 50 {
		t.Fatalf("service results: %+v, %v", got, err)
	}

	if _, err := service.View(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected completed session to be released, got %v", err)
	}

	published := events.all()
	if len(published) != 1 || published[0].Type != domain.EventCompleted || published[0].SessionID != id {
		t.Fatalf("expected one completed event, got %+v", published)
	}
	if _, ok := published[0].Payload.(domain.Results); !ok {
		t.Fatalf("expected results payload, got %T", published[0].Payload)
	}
}

func TestConfirmExitPublishesWithoutResults(t *testing.T) {
	ctx := context.Background()
	service, results, events := newTestService(t)

	view, err := service.Start(ctx, "quiz-1", "u2")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	id := view.SessionID

	view = mustDo(t, func() (domain.SessionView, error) { return service.RequestExit(ctx, id) })
	if !view.ExitPrompt {
		t.Fatalf("expected exit prompt")
	}
	view = mustDo(t, func() (domain.SessionView, error) { return service.CancelExit(ctx, id) })
	if view.ExitPrompt || view.Status != domain.StatusActive {
		t.Fatalf("expected active session after cancel, got %+v", view)
	}

	mustDo(t, func() (domain.SessionView, error) { return service.RequestExit(ctx, id) })
	view = mustDo(t, func() (domain.SessionView, error) { return service.ConfirmExit(ctx, id) })
	if view.Status != domain.StatusExited {
		t.Fatalf("expected exited status, got %s", view.Status)
	}

	if _, err := results.GetResult(ctx, id); !errors.Is(err, domain.ErrResultsNotFound) {
		t.Fatalf("expected no results after exit, got %v", err)
	}
	published := events.all()
	if len(published) != 1 || published[0].Type != domain.EventExited || published[0].UserID != "u2" {
		t.Fatalf("expected one exited event, got %+v", published)
	}
}

func TestUnknownSessionAndQuiz(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	if _, err := service.Start(ctx, "missing", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if _, err := service.Submit(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, _, err := service.Subscribe(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAbandonTearsDownWithoutCallbacks(t *testing.T) {
	ctx := context.Background()
	service, results, events := newTestService(t)

	view, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	service.Abandon(ctx, view.SessionID)

	// Initial snapshot, then the channel is closed.
	<-ch
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected subscription closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed")
	}

	if _, err := service.View(ctx, view.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
	if _, err := results.GetResult(ctx, view.SessionID); !errors.Is(err, domain.ErrResultsNotFound) {
		t.Fatalf("expected no results, got %v", err)
	}
	if got := events.all(); len(got) != 0 {
		t.Fatalf("expected no events, got %+v", got)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	view, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	<-ch

	if _, err := service.Select(ctx, view.SessionID, 1); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	select {
	case update := <-ch:
		if update.Selected == nil || *update.Selected != 1 {
			t.Fatalf("expected selection in update, got %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update received")
	}
}

type countingLoader struct {
	memory.QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func TestReloadQuizRefetchesContent(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {ID: "quiz-1", Questions: []domain.Question{
			{ID: "q1", Prompt: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Difficulty: domain.DifficultyBeginner, Topic: "math", Points: 5},
		}},
	})}
	store := memory.NewSessionStore()
	t.Cleanup(store.CloseAll)
	service := app.NewQuizService(store, memory.NewQuizRepository(loader, time.Hour), memory.NewResultStore(), app.Options{
		NewTicker: func(time.Duration) quiz.Ticker { return idleTicker{ch: make(chan time.Time)} },
	})

	for i := 0; i < 2; i++ {
		if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected cached quiz, loader calls=%d", loader.calls)
	}

	if err := service.ReloadQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := service.Start(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload from loader, loader calls=%d", loader.calls)
	}
}

func newTestService(t *testing.T) (*app.QuizService, *memory.ResultStore, *recordingPublisher) {
	t.Helper()
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:            "quiz-1",
			CategoryTitle: "Python pour la Data Science",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, Difficulty: domain.DifficultyBeginner, Topic: "math", Points: 5},
				{ID: "q2", Prompt: "Capital of France?", Options: []string{"Lyon", "Paris"}, CorrectAnswer: 1, Difficulty: domain.DifficultyBeginner, Topic: "geo", Points: 5},
			},
		},
	})
	store := memory.NewSessionStore()
	t.Cleanup(store.CloseAll)

	results := memory.NewResultStore()
	events := &recordingPublisher{}
	var seq int
	service := app.NewQuizService(store, memory.NewQuizRepository(loader, time.Minute), results, app.Options{
		NewTicker: func(time.Duration) quiz.Ticker { return idleTicker{ch: make(chan time.Time)} },
		NewID: func() string {
			seq++
			return "s-" + strconv.Itoa(seq)
		},
		Publisher: events,
	})
	return service, results, events
}

func mustDo(t *testing.T, action func() (domain.SessionView, error)) domain.SessionView {
	t.Helper()
	view, err := action()
	if err != nil {
		t.Fatalf("action failed: %v", err)
	}
	return view
}

// idleTicker never fires; elapsed time is driven by the session tests instead.
type idleTicker struct {
	ch chan time.Time
}

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) all() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}
