package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/service"
)

const TopicRunDue = "reminder_runs"

// RunTrigger asks a worker to run every due campaign.
type RunTrigger struct {
	ActorID     int64     `json:"actor_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func PublishRunTrigger(ctx context.Context, q Queue, actorID int64) error {
	body, err := json.Marshal(RunTrigger{ActorID: actorID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encode run trigger")
	}
	return q.Publish(ctx, TopicRunDue, body)
}

// StartRunTriggerSubscriber runs the scheduler for every trigger message.
// Malformed messages are dropped; failed runs are retried by the queue,
// which is safe because already processed slots are never sent twice.
func StartRunTriggerSubscriber(q Queue, runner service.DueRunner, logger logrus.FieldLogger) error {
	return q.Subscribe(TopicRunDue, func(payload []byte) error {
		var trigger RunTrigger
		if err := json.Unmarshal(payload, &trigger); err != nil {
			logger.WithError(err).Warn("invalid run trigger, dropping")
			return nil
		}

		log := logger.WithField("actor_id", trigger.ActorID)
		n, err := runner.RunDue(context.Background(), trigger.ActorID)
		if err != nil {
			log.WithError(err).WithField("dispatched", n).Error("triggered run failed")
			return err
		}
		log.WithField("dispatched", n).Info("triggered run completed")
		return nil
	})
}
