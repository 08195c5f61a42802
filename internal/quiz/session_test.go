package quiz

import (
	"errors"
	"sync"
	"testing"
	"time"

	"course-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu        sync.Mutex
	completed []domain.Results
	exits     int
}

func (r *recorder) onComplete(res domain.Results) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, res)
}

func (r *recorder) onExit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits++
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed), r.exits
}

type harness struct {
	session *Session
	ticker  *manualTicker
	clock   *fakeClock
	rec     *recorder
}

func newHarness(t *testing.T, qs []domain.Question) *harness {
	t.Helper()
	h := &harness{
		ticker: &manualTicker{ch: make(chan time.Time)},
		clock:  &fakeClock{now: t0},
		rec:    &recorder{},
	}
	s, err := New(qs, Config{
		ID:            "s-1",
		QuizID:        "python-basics",
		CategoryTitle: "Python pour la Data Science",
		OnComplete:    h.rec.onComplete,
		OnExit:        h.rec.onExit,
		NewTicker:     func(time.Duration) Ticker { return h.ticker },
		Clock:         h.clock.Now,
	})
	require.NoError(t, err)
	h.session = s
	t.Cleanup(s.Close)
	return h
}

func (h *harness) answerAndAdvance(t *testing.T, option int) domain.SessionView {
	t.Helper()
	_, err := h.session.SelectOption(option)
	require.NoError(t, err)
	_, err = h.session.Submit()
	require.NoError(t, err)
	view, err := h.session.Next()
	require.NoError(t, err)
	return view
}

func TestSessionTimerTicksThroughGoroutine(t *testing.T) {
	h := newHarness(t, threeQuestions())
	for i := 0; i < 3; i++ {
		h.ticker.ch <- t0
	}
	require.Eventually(t, func() bool {
		return h.session.View().ElapsedSeconds == 3
	}, time.Second, 5*time.Millisecond)
}

func TestSessionCompletesExactlyOnce(t *testing.T) {
	h := newHarness(t, []domain.Question{
		question("q1", "numpy", 0),
		question("q2", "numpy", 1),
		question("q3", "pandas", 2),
		question("q4", "pandas", 3),
	})

	for i, option := range []int{0, 1, 2} {
		h.clock.Advance(2 * time.Second)
		h.session.tick()
		view := h.answerAndAdvance(t, option)
		assert.Equal(t, i+1, view.Index)
	}
	_, err := h.session.SelectOption(3)
	require.NoError(t, err)
	view, err := h.session.Submit()
	require.NoError(t, err)
	assert.True(t, view.IsLast)
	assert.True(t, view.CanGoNext)

	view, err = h.session.Finish()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)

	completed, exits := h.rec.counts()
	require.Equal(t, 1, completed)
	assert.Zero(t, exits)

	res := h.rec.completed[0]
	require.NotNil(t, view.Results)
	assert.Equal(t, res, *view.Results)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 4, res.CorrectAnswers)
	assert.Equal(t, 3, res.TotalTime)
	assert.Empty(t, res.WeakAreas)

	// Frozen: further ticks and actions change nothing.
	h.session.tick()
	assert.Equal(t, 3, h.session.View().ElapsedSeconds)
	_, err = h.session.Finish()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = h.session.Next()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)

	completed, _ = h.rec.counts()
	assert.Equal(t, 1, completed)

	got, ok := h.session.Results()
	require.True(t, ok)
	assert.Equal(t, res, got)
}

func TestSessionViewHidesAnswerKeyUntilAnswered(t *testing.T) {
	h := newHarness(t, threeQuestions())
	view := h.session.View()
	assert.Nil(t, view.Question.CorrectAnswer)
	assert.Empty(t, view.Question.Explanation)
	assert.Nil(t, view.Selected)
	assert.False(t, view.CanGoNext)
	assert.False(t, view.CanGoPrevious)

	_, err := h.session.SelectOption(1)
	require.NoError(t, err)
	view, err = h.session.Submit()
	require.NoError(t, err)
	require.NotNil(t, view.Question.CorrectAnswer)
	assert.Equal(t, 0, *view.Question.CorrectAnswer)
	assert.Equal(t, "Because q1", view.Question.Explanation)
	require.NotNil(t, view.Answer)
	assert.False(t, view.Answer.IsCorrect)
	assert.Equal(t, 33, view.Progress)
}

func TestSessionRevisitShowsOriginalAnswer(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.clock.Advance(3 * time.Second)
	_, err := h.session.SelectOption(0)
	require.NoError(t, err)
	submitted, err := h.session.Submit()
	require.NoError(t, err)

	_, err = h.session.Next()
	require.NoError(t, err)
	h.clock.Advance(10 * time.Second)
	back, err := h.session.Previous()
	require.NoError(t, err)
	_, err = h.session.Next()
	require.NoError(t, err)
	again, err := h.session.Previous()
	require.NoError(t, err)

	assert.Equal(t, *submitted.Answer, *back.Answer)
	assert.Equal(t, *submitted.Answer, *again.Answer)
	assert.Equal(t, 3, again.Answer.TimeSpent)
	assert.Equal(t, 1, again.Answered)
}

func TestSessionExitCancelResumes(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.answerAndAdvance(t, 0)
	_, err := h.session.SelectOption(2)
	require.NoError(t, err)
	h.session.tick()
	before := h.session.View()

	prompt, err := h.session.RequestExit()
	require.NoError(t, err)
	assert.True(t, prompt.ExitPrompt)
	h.session.tick()

	after, err := h.session.CancelExit()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	completed, exits := h.rec.counts()
	assert.Zero(t, completed)
	assert.Zero(t, exits)
}

func TestSessionConfirmExitNeverCompletes(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.answerAndAdvance(t, 0)

	_, err := h.session.RequestExit()
	require.NoError(t, err)
	view, err := h.session.ConfirmExit()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExited, view.Status)
	assert.Zero(t, view.Answered)

	completed, exits := h.rec.counts()
	assert.Zero(t, completed)
	assert.Equal(t, 1, exits)

	_, err = h.session.ConfirmExit()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, exits = h.rec.counts()
	assert.Equal(t, 1, exits)
	_, ok := h.session.Results()
	assert.False(t, ok)
}

func TestSessionCloseInvokesNoCallbacks(t *testing.T) {
	h := newHarness(t, threeQuestions())
	updates, cancel := h.session.Subscribe()
	defer cancel()
	<-updates

	h.session.Close()
	h.session.Close()

	_, open := <-updates
	assert.False(t, open)
	_, err := h.session.SelectOption(0)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.True(t, h.session.Done())

	completed, exits := h.rec.counts()
	assert.Zero(t, completed)
	assert.Zero(t, exits)
}

func TestSessionSubmissionErrorIsRecoverable(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.answerAndAdvance(t, 0)
	committed := h.session.View()

	failures := 1
	h.session.mu.Lock()
	h.session.apply = func(st State, a Action, now time.Time) (State, Effect, error) {
		if _, ok := a.(Submit); ok && failures > 0 {
			failures--
			panic("store unavailable")
		}
		return Apply(st, a, now)
	}
	h.session.mu.Unlock()

	_, err := h.session.SelectOption(1)
	require.NoError(t, err)
	view, err := h.session.Submit()
	var actionErr *domain.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, domain.KindSubmission, actionErr.Kind)
	assert.True(t, view.Retryable)
	assert.NotEmpty(t, view.Error)
	assert.Equal(t, committed.Answered, view.Answered)
	assert.Nil(t, view.Answer)

	view, err = h.session.Retry()
	require.NoError(t, err)
	assert.Empty(t, view.Error)
	require.NotNil(t, view.Answer)
	assert.Equal(t, 1, view.Answer.SelectedAnswer)
	assert.Equal(t, 2, view.Answered)

	_, err = h.session.Retry()
	assert.ErrorIs(t, err, domain.ErrNothingToRetry)
}

func TestSessionCompletionErrorKeepsSessionActive(t *testing.T) {
	h := newHarness(t, threeQuestions()[:1])

	failures := 1
	h.session.mu.Lock()
	h.session.apply = func(st State, a Action, now time.Time) (State, Effect, error) {
		if _, ok := a.(Finish); ok && failures > 0 {
			failures--
			return st, EffectNone, &domain.ActionError{Kind: domain.KindCompletion, Err: errors.New("aggregation failed")}
		}
		return Apply(st, a, now)
	}
	h.session.mu.Unlock()

	_, err := h.session.SelectOption(0)
	require.NoError(t, err)
	_, err = h.session.Submit()
	require.NoError(t, err)

	view, err := h.session.Finish()
	require.Error(t, err)
	assert.Equal(t, domain.StatusActive, view.Status)
	assert.True(t, view.Retryable)
	completed, _ := h.rec.counts()
	assert.Zero(t, completed)

	view, err = h.session.Retry()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	completed, _ = h.rec.counts()
	assert.Equal(t, 1, completed)
}

func TestSessionNavigationDropsStaleError(t *testing.T) {
	h := newHarness(t, threeQuestions()[:2])
	h.answerAndAdvance(t, 0)

	failures := 1
	h.session.mu.Lock()
	h.session.apply = func(st State, a Action, now time.Time) (State, Effect, error) {
		if _, ok := a.(Finish); ok && failures > 0 {
			failures--
			return st, EffectNone, &domain.ActionError{Kind: domain.KindCompletion, Err: errors.New("aggregation failed")}
		}
		return Apply(st, a, now)
	}
	h.session.mu.Unlock()

	_, err := h.session.SelectOption(1)
	require.NoError(t, err)
	_, err = h.session.Submit()
	require.NoError(t, err)
	view, err := h.session.Finish()
	require.Error(t, err)
	assert.True(t, view.Retryable)

	view, err = h.session.Previous()
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)
	assert.Empty(t, view.Error)
	assert.False(t, view.Retryable)

	_, err = h.session.Retry()
	assert.ErrorIs(t, err, domain.ErrNothingToRetry)

	_, err = h.session.Next()
	require.NoError(t, err)
	view, err = h.session.Finish()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	completed, _ := h.rec.counts()
	assert.Equal(t, 1, completed)
}

func TestSessionDismissErrorClearsState(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.session.mu.Lock()
	h.session.apply = func(st State, a Action, now time.Time) (State, Effect, error) {
		if _, ok := a.(Submit); ok {
			return st, EffectNone, &domain.ActionError{Kind: domain.KindSubmission, Err: errors.New("boom")}
		}
		return Apply(st, a, now)
	}
	h.session.mu.Unlock()

	_, _ = h.session.SelectOption(0)
	_, err := h.session.Submit()
	require.Error(t, err)

	view := h.session.DismissError()
	assert.Empty(t, view.Error)
	_, err = h.session.Retry()
	assert.ErrorIs(t, err, domain.ErrNothingToRetry)
}

func TestSessionSubscribersSeeTicksAndClose(t *testing.T) {
	h := newHarness(t, threeQuestions()[:1])
	updates, cancel := h.session.Subscribe()
	defer cancel()

	initial := <-updates
	assert.Equal(t, 0, initial.ElapsedSeconds)

	h.session.tick()
	tick := <-updates
	assert.Equal(t, 1, tick.ElapsedSeconds)

	_, err := h.session.SelectOption(0)
	require.NoError(t, err)
	_, err = h.session.Submit()
	require.NoError(t, err)
	_, err = h.session.Next()
	require.NoError(t, err)

	var last domain.SessionView
	for v := range updates {
		last = v
	}
	assert.Equal(t, domain.StatusCompleted, last.Status)
}

func TestSessionSubscribeAfterCloseYieldsFinalView(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.session.Close()

	updates, cancel := h.session.Subscribe()
	defer cancel()
	view, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, "s-1", view.SessionID)
	_, ok = <-updates
	assert.False(t, ok)
}
