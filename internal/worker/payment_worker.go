package worker

import (
	"context"
	"log/slog"
	"time"
)

// PaymentSweeper is the slice of the payment orchestrator the worker drives.
type PaymentSweeper interface {
	ProcessScheduledPayments(ctx context.Context, now time.Time, limit int) (int, error)
	RetryFailedPayments(ctx context.Context, now time.Time, limit int) (int, error)
}

// PaymentWorker periodically sweeps due payments into processing and failed
// payments back into retry.
type PaymentWorker struct {
	payments  PaymentSweeper
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewPaymentWorker(
	payments PaymentSweeper,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *PaymentWorker {
	return &PaymentWorker{
		payments:  payments,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *PaymentWorker) Start(ctx context.Context) {
	w.logger.Info("payment worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("payment worker stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx, time.Now().UTC())
		}
	}
}

// Sweep runs one pass of both sweeps. Errors are logged, never fatal: the
// next tick picks up whatever this one could not finish.
func (w *PaymentWorker) Sweep(ctx context.Context, now time.Time) {
	if _, err := w.payments.ProcessScheduledPayments(ctx, now, w.batchSize); err != nil {
		w.logger.Error("scheduled payment sweep failed", "error", err)
	}

	if _, err := w.payments.RetryFailedPayments(ctx, now, w.batchSize); err != nil {
		w.logger.Error("retry sweep failed", "error", err)
	}
}
