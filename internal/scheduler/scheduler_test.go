package scheduler_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/domain"
	"github.com/wonderooo/cars/internal/scheduler"
)

// TestIntervalFiresImmediately covers the Interval kind: "first run
// immediately, then every d".
func TestIntervalFiresImmediately(t *testing.T) {
	s := scheduler.NewScheduler(zerolog.Nop())
	fired := make(chan struct{}, 1)

	s.Register(scheduler.Task{
		Name:   "immediate",
		Kind:   scheduler.Interval,
		Period: time.Hour,
		Fn: func(time.Time) []domain.Command {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	})
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Interval task did not fire immediately")
	}
}

// TestIntervalDeferredDoesNotFireImmediately covers the IntervalDeferred
// kind: "first run after d".
func TestIntervalDeferredDoesNotFireImmediately(t *testing.T) {
	s := scheduler.NewScheduler(zerolog.Nop())
	fired := make(chan struct{}, 1)

	s.Register(scheduler.Task{
		Name:   "deferred",
		Kind:   scheduler.IntervalDeferred,
		Period: 50 * time.Millisecond,
		Fn: func(time.Time) []domain.Command {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	})
	defer s.Stop()

	select {
	case <-fired:
		t.Fatal("IntervalDeferred task fired immediately, want deferred")
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("IntervalDeferred task never fired")
	}
}

// TestCopartLotSearchTaskShape covers spec §4.10's concrete task: 24*31
// hour offsets times 20 model years (2006..=2025) of LotSearch commands
// per fire, each with a one-hour date window.
func TestCopartLotSearchTaskShape(t *testing.T) {
	task := scheduler.NewCopartLotSearchTask()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cmds := task.Fn(now)

	wantCount := 24 * 31 * 20
	if len(cmds) != wantCount {
		t.Fatalf("got %d commands, want %d", len(cmds), wantCount)
	}

	first := cmds[0]
	if first.Kind != domain.CommandLotSearch {
		t.Fatalf("Kind = %q, want lot_search", first.Kind)
	}
	if !first.DateStart.Equal(now) {
		t.Errorf("DateStart = %v, want %v", first.DateStart, now)
	}
	if !first.DateEnd.Equal(now.Add(time.Hour)) {
		t.Errorf("DateEnd = %v, want %v", first.DateEnd, now.Add(time.Hour))
	}
	if first.YearStart != 2006 || first.YearEnd != 2006 {
		t.Errorf("YearStart/YearEnd = %d/%d, want 2006/2006", first.YearStart, first.YearEnd)
	}

	last := cmds[len(cmds)-1]
	if last.YearStart != 2025 {
		t.Errorf("last command YearStart = %d, want 2025", last.YearStart)
	}
}

// TestCopartLoginRefreshTaskEmitsOneCommand covers the 30-minute
// LoginRefresh task.
func TestCopartLoginRefreshTaskEmitsOneCommand(t *testing.T) {
	task := scheduler.NewCopartLoginRefreshTask()
	cmds := task.Fn(time.Now())
	if len(cmds) != 1 || cmds[0].Kind != domain.CommandLoginRefresh {
		t.Fatalf("cmds = %+v, want exactly one LoginRefresh", cmds)
	}
}
