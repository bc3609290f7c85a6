// Package scheduler is the lightweight in-process task runner of C10 (spec
// §4.10): it fires Command emissions onto the bus on a fixed cadence.
//
// Grounded on the teacher's scheduler.Scheduler dispatch-loop idiom
// (one background goroutine, an idempotent stopCh-closing Stop) generalized
// from "one job per session" to "one task per registered schedule entry",
// and token.TokenRefreshManager's ticker-plus-stopCh idiom for each task's
// loop.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/domain"
)

// Kind discriminates the three scheduling shapes spec §4.10 names.
type Kind int

const (
	// Interval runs immediately, then every Period.
	Interval Kind = iota
	// IntervalDeferred runs for the first time after Period, then every
	// Period.
	IntervalDeferred
	// Timed runs exactly once at At.
	Timed
)

// Task is one registered schedule entry. Fn is invoked on the cadence Kind
// and Period/At describe; it emits zero or more Commands to the scheduler's
// shared output channel.
type Task struct {
	Name   string
	Kind   Kind
	Period time.Duration
	At     time.Time
	Fn     func(now time.Time) []domain.Command
}

// Scheduler runs a fixed set of Tasks, each on its own goroutine, fanning
// their emitted Commands into a single channel the bus bridge's outbound
// adapter (in this case, the pool's inbound command publisher) drains.
//
// The scheduler has no persistence: missed ticks during downtime are never
// replayed, per spec §4.10.
type Scheduler struct {
	log    zerolog.Logger
	out    chan domain.Command
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	now func() time.Time
}

// NewScheduler constructs a Scheduler with no tasks registered yet.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:    log.With().Str("component", "scheduler").Logger(),
		out:    make(chan domain.Command, 256),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Commands returns the channel every registered task's emitted Commands are
// published to.
func (s *Scheduler) Commands() <-chan domain.Command { return s.out }

// Register starts a background goroutine driving t on its configured
// cadence. Register must be called before Stop.
func (s *Scheduler) Register(t Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		switch t.Kind {
		case Interval:
			s.runInterval(t, false)
		case IntervalDeferred:
			s.runInterval(t, true)
		case Timed:
			s.runTimed(t)
		}
	}()
}

func (s *Scheduler) runInterval(t Task, deferFirst bool) {
	if !deferFirst {
		s.fire(t)
	}

	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.fire(t)
		}
	}
}

func (s *Scheduler) runTimed(t Task) {
	delay := t.At.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-s.stopCh:
		return
	case <-timer.C:
		s.fire(t)
	}
}

func (s *Scheduler) fire(t Task) {
	cmds := t.Fn(s.now())
	for _, cmd := range cmds {
		select {
		case s.out <- cmd:
		case <-s.stopCh:
			return
		}
	}
	s.log.Debug().Str("task", t.Name).Int("commands", len(cmds)).Msg("task fired")
}

// Stop signals every registered task to exit and waits for them to finish.
// Idempotent.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
