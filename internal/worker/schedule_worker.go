package worker

import (
	"context"
	"log/slog"
	"time"
)

// ScheduleRunner is the slice of the schedule engine the worker drives.
type ScheduleRunner interface {
	ExecuteDueSchedules(ctx context.Context, now time.Time) (int, error)
}

// ScheduleWorker is the clock for recurring billing: each tick fires every
// schedule whose next execution time has arrived.
type ScheduleWorker struct {
	schedules ScheduleRunner
	interval  time.Duration
	logger    *slog.Logger
}

func NewScheduleWorker(
	schedules ScheduleRunner,
	interval time.Duration,
	logger *slog.Logger,
) *ScheduleWorker {
	return &ScheduleWorker{
		schedules: schedules,
		interval:  interval,
		logger:    logger,
	}
}

func (w *ScheduleWorker) Start(ctx context.Context) {
	w.logger.Info("schedule worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("schedule worker stopping")
			return
		case <-ticker.C:
			w.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs one firing pass.
func (w *ScheduleWorker) Tick(ctx context.Context, now time.Time) {
	if _, err := w.schedules.ExecuteDueSchedules(ctx, now); err != nil {
		w.logger.Error("schedule firing pass failed", "error", err)
	}
}
