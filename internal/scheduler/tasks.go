package scheduler

import (
	"time"

	"github.com/wonderooo/cars/internal/domain"
)

const (
	lotSearchTaskPeriod    = 4 * time.Hour
	loginRefreshTaskPeriod = 30 * time.Minute

	// hourOffsetCount is 24*31: the task slices the next 31 days into
	// one-hour auction-date windows, per spec §4.10.
	hourOffsetCount = 24 * 31

	modelYearStart = 2006
	modelYearEnd   = 2025
)

// NewCopartLotSearchTask builds the task spec §4.10 describes: every 4
// hours, for hour-offsets 0..24*31 and model years 2006..=2025, emit a
// LotSearch command whose date window is [now+h, now+h+1), RFC-3339
// seconds-precision UTC. Page number is always 0; nothing in the pipeline
// requests later pages of a window.
func NewCopartLotSearchTask() Task {
	return Task{
		Name:   "copart_lot_search",
		Kind:   Interval,
		Period: lotSearchTaskPeriod,
		Fn:     emitLotSearchWindows,
	}
}

func emitLotSearchWindows(now time.Time) []domain.Command {
	now = now.UTC().Truncate(time.Second)
	cmds := make([]domain.Command, 0, hourOffsetCount*(modelYearEnd-modelYearStart+1))

	for h := 0; h < hourOffsetCount; h++ {
		windowStart := now.Add(time.Duration(h) * time.Hour)
		windowEnd := windowStart.Add(time.Hour)

		for year := modelYearStart; year <= modelYearEnd; year++ {
			cmds = append(cmds, domain.NewLotSearch(0, windowStart, windowEnd, year, year))
		}
	}
	return cmds
}

// NewCopartLoginRefreshTask builds the task spec §4.10 describes: every 30
// minutes, emit a LoginRefresh command.
func NewCopartLoginRefreshTask() Task {
	return Task{
		Name:   "copart_login_refresh",
		Kind:   Interval,
		Period: loginRefreshTaskPeriod,
		Fn: func(time.Time) []domain.Command {
			return []domain.Command{domain.NewLoginRefresh()}
		},
	}
}
