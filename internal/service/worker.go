package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DueRunner is the scheduler entry point the worker triggers.
type DueRunner interface {
	RunDue(ctx context.Context, actorID int64) (int, error)
}

// Worker triggers RunDue on a fixed interval
type Worker struct {
	Runner   DueRunner
	Interval time.Duration
	ActorID  int64
	Logger   logrus.FieldLogger
}

// Constructor
func NewWorker(runner DueRunner, interval time.Duration, actorID int64, logger logrus.FieldLogger) *Worker {
	return &Worker{
		Runner:   runner,
		Interval: interval,
		ActorID:  actorID,
		Logger:   logger,
	}
}

// Start runs once immediately and then on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Logger.WithField("interval", w.Interval.String()).Info("reminder worker started")

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	n, err := w.Runner.RunDue(ctx, w.ActorID)
	if err != nil {
		w.Logger.WithError(err).WithField("dispatched", n).Error("scheduled run finished with errors")
		return
	}
	w.Logger.WithField("dispatched", n).Debug("scheduled run finished")
}
