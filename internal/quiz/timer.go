package quiz

import (
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker the session timer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Timer runs onTick on its own goroutine until stopped. Stop is idempotent
// and returns only once the goroutine has exited, so no tick can be delivered
// after it.
type Timer struct {
	ticker Ticker
	onTick func()

	once sync.Once
	done chan struct{}
	exit chan struct{}
}

func startTimer(factory TickerFactory, interval time.Duration, onTick func()) *Timer {
	t := &Timer{
		ticker: factory(interval),
		onTick: onTick,
		done:   make(chan struct{}),
		exit:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Timer) run() {
	defer close(t.exit)
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C():
			select {
			case <-t.done:
				return
			default:
			}
			t.onTick()
		}
	}
}

// Stop cancels the timer and waits for its goroutine.
func (t *Timer) Stop() {
	t.once.Do(func() {
		close(t.done)
		t.ticker.Stop()
	})
	<-t.exit
}
