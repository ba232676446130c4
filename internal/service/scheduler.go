// internal/service/scheduler.go
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
	"github.com/unclebandit/reminder-scheduler/internal/repository"
)

const runLockKey = "reminders:run-due"

// CampaignRegistry is what the scheduler needs from the campaign registry.
type CampaignRegistry interface {
	ListActive(ctx context.Context) ([]*model.Campaign, error)
	Advance(ctx context.Context, c *model.Campaign, actorID int64) error
}

type RecipientSource interface {
	Resolve(ctx context.Context, c *model.Campaign) ([]model.Recipient, error)
}

// Dispatcher hands rendered messages to a delivery transport. Any error is
// a failure of that single delivery.
type Dispatcher interface {
	SendMail(ctx context.Context, msg model.MailMessage) error
	SendSMS(ctx context.Context, msg model.SMSMessage) error
}

// RunLocker guards against overlapping runs. It is an optimisation only:
// the delivery log's unique slot key is what prevents double sends.
type RunLocker interface {
	TryLock(ctx context.Context, key string) (unlock func(context.Context) error, acquired bool, err error)
}

// Scheduler runs due campaigns: it resolves recipients, computes each
// recipient's send slot, claims the slot in the delivery log, renders,
// dispatches and finally advances the campaign's cadence.
type Scheduler struct {
	Campaigns  CampaignRegistry
	Recipients RecipientSource
	Deliveries repository.DeliveryLogRepositoryInterface
	Renderer   Renderer
	Dispatcher Dispatcher
	Locker     RunLocker
	Logger     logrus.FieldLogger
	Now        func() time.Time
	// Workers bounds per-campaign delivery concurrency; values below 1 mean 1.
	Workers int
}

type deliveryJob struct {
	campaign  *model.Campaign
	recipient model.Recipient
	channel   model.Channel
	runAt     time.Time
}

// RunDue processes every active campaign whose next run is due and returns
// how many deliveries reached sent or pending. A campaign that fails on a
// storage error is not advanced and is reported in a *appErrors.RunError;
// the remaining campaigns still run.
func (s *Scheduler) RunDue(ctx context.Context, actorID int64) (int, error) {
	log := s.log().WithFields(logrus.Fields{
		"run_id":   uuid.NewString(),
		"actor_id": actorID,
	})

	if s.Locker != nil {
		unlock, acquired, err := s.Locker.TryLock(ctx, runLockKey)
		if err != nil {
			return 0, errors.Wrap(err, "acquire run lock")
		}
		if !acquired {
			log.Info("another scheduler run is in progress, skipping")
			return 0, nil
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				log.WithError(err).Warn("failed to release run lock")
			}
		}()
	}

	now := s.now()
	campaigns, err := s.Campaigns.ListActive(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list active campaigns")
	}

	total := 0
	var failures []appErrors.CampaignFailure
	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if !c.NextRunAt.IsDue(now) {
			continue
		}

		clog := log.WithField("campaign_id", c.ID)
		n, err := s.runCampaign(ctx, c, actorID, now, clog)
		total += n
		if err != nil {
			clog.WithError(err).Error("campaign run aborted")
			failures = append(failures, appErrors.CampaignFailure{CampaignID: c.ID, Err: err})
			continue
		}
		clog.WithField("dispatched", n).Info("campaign run completed")
	}

	log.WithFields(logrus.Fields{
		"dispatched": total,
		"failed":     len(failures),
	}).Info("scheduler run finished")

	if len(failures) > 0 {
		return total, &appErrors.RunError{Failures: failures}
	}
	return total, nil
}

func (s *Scheduler) runCampaign(ctx context.Context, c *model.Campaign, actorID int64, now time.Time, log logrus.FieldLogger) (int, error) {
	recipients, err := s.Recipients.Resolve(ctx, c)
	if err != nil {
		return 0, errors.Wrap(err, "resolve recipients")
	}

	runAt := c.NextRunAt.Or(now)
	var jobs []deliveryJob
	for _, rcpt := range recipients {
		for _, ch := range model.EffectiveChannels(c.Channel, rcpt.PreferredChannel) {
			jobs = append(jobs, deliveryJob{campaign: c, recipient: rcpt, channel: ch, runAt: runAt})
		}
	}

	log.WithFields(logrus.Fields{
		"recipients": len(recipients),
		"deliveries": len(jobs),
		"run_at":     runAt,
	}).Debug("campaign recipients resolved")

	dispatched, err := s.processAll(ctx, jobs, log)
	if err != nil {
		return dispatched, err
	}

	if err := s.Campaigns.Advance(ctx, c, actorID); err != nil {
		return dispatched, errors.Wrap(err, "advance campaign")
	}
	return dispatched, nil
}

// processAll runs jobs on a bounded pool. The first storage error stops
// the jobs that have not claimed their slot yet and is returned.
func (s *Scheduler) processAll(parent context.Context, jobs []deliveryJob, log logrus.FieldLogger) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		firstErr   error
		dispatched int64
	)
	queue := make(chan deliveryJob)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				if ctx.Err() != nil {
					continue
				}
				ok, err := s.deliver(ctx, job, log)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					continue
				}
				if ok {
					atomic.AddInt64(&dispatched, 1)
				}
			}
		}()
	}

feed:
	for _, job := range jobs {
		select {
		case queue <- job:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if firstErr == nil {
		firstErr = parent.Err()
	}
	return int(atomic.LoadInt64(&dispatched)), firstErr
}

// deliver handles one recipient on one channel. It reports whether the
// delivery reached sent or pending; a returned error is a storage failure.
// Cancelling ctx stops a delivery only before its slot is claimed.
func (s *Scheduler) deliver(ctx context.Context, job deliveryJob, log logrus.FieldLogger) (bool, error) {
	c, rcpt, ch := job.campaign, job.recipient, job.channel
	slot := model.ScheduledFor(job.runAt, rcpt.Location, rcpt.LeadDays, rcpt.PreferredHour)
	dlog := log.WithFields(logrus.Fields{
		"customer_id":   rcpt.CustomerID,
		"channel":       ch,
		"scheduled_for": slot,
	})

	entry := &model.DeliveryLogEntry{
		CampaignID:   c.ID,
		PreferenceID: rcpt.PreferenceID,
		CustomerID:   rcpt.CustomerID,
		Channel:      ch,
		ScheduledFor: slot,
	}

	// Cheap early exit so already processed slots are not rendered again.
	// The insert below is what actually claims the slot.
	exists, err := s.Deliveries.ExistsForSlot(ctx, entry.Key())
	if err != nil {
		return false, err
	}
	if exists {
		dlog.Debug("slot already processed")
		return false, nil
	}

	address := rcpt.Address(ch)
	if address == "" {
		reason := model.SkipReasonNoContact
		entry.Status = model.DeliverySkipped
		entry.Error = &reason
		if err := s.Deliveries.Record(ctx, entry); err != nil && !errors.Is(err, appErrors.ErrSlotClaimed) {
			return false, err
		}
		dlog.Info("delivery skipped: " + reason)
		return false, nil
	}

	data := s.renderContext(c, rcpt, slot)
	templateKey := fmt.Sprintf("campaign:%d:%s", c.ID, ch)

	var subject, body string
	switch ch {
	case model.ChannelMail:
		subject = s.Renderer.Render(c.EmailSubject, data)
		body = s.Renderer.Render(c.EmailBody, data)
	case model.ChannelSMS:
		body = s.Renderer.Render(c.SmsBody, data)
	}

	entry.Status = model.DeliveryQueued
	entry.RenderedBody = body
	if err := s.Deliveries.Record(ctx, entry); err != nil {
		if errors.Is(err, appErrors.ErrSlotClaimed) {
			dlog.Debug("slot claimed by a concurrent run")
			return false, nil
		}
		return false, err
	}

	// The entry exists from here on and must reach a terminal status, so the
	// hand-off and the status update no longer follow run cancellation.
	// Transports bound the hand-off with their own timeout.
	ctx = context.WithoutCancel(ctx)

	var sendErr error
	success := model.DeliverySent
	switch ch {
	case model.ChannelMail:
		sendErr = s.Dispatcher.SendMail(ctx, model.MailMessage{
			TemplateKey: templateKey,
			To:          address,
			Subject:     subject,
			Body:        body,
			Context:     data,
		})
	case model.ChannelSMS:
		// SMS delivery receipts arrive asynchronously, so a successful
		// hand-off only reaches pending.
		success = model.DeliveryPending
		sendErr = s.Dispatcher.SendSMS(ctx, model.SMSMessage{
			TemplateKey: templateKey,
			To:          address,
			Body:        body,
			Context:     data,
		})
	}

	if sendErr != nil {
		msg := sendErr.Error()
		if err := s.Deliveries.UpdateStatus(ctx, entry.ID, model.DeliveryFailed, nil, &msg); err != nil {
			return false, err
		}
		dlog.WithError(sendErr).Warn("delivery failed")
		return false, nil
	}

	if err := s.Deliveries.UpdateStatus(ctx, entry.ID, success, nil, nil); err != nil {
		return false, err
	}
	dlog.WithField("status", success).Debug("delivery dispatched")
	return true, nil
}

func (s *Scheduler) renderContext(c *model.Campaign, rcpt model.Recipient, slot time.Time) map[string]string {
	loc := rcpt.Location
	if loc == nil {
		loc = time.UTC
	}
	return map[string]string{
		KeyCampaignName:   c.Name,
		KeyCustomerID:     strconv.FormatInt(rcpt.CustomerID, 10),
		KeyCustomerName:   rcpt.DisplayName,
		KeyScheduledLocal: slot.In(loc).Format("2006-01-02 15:04 MST"),
		KeyScheduledUTC:   slot.UTC().Format(time.RFC3339),
	}
}

// Preview renders a campaign for one recipient without touching the
// delivery log or any transport.
func (s *Scheduler) Preview(c *model.Campaign, rcpt model.Recipient) map[string]string {
	slot := model.ScheduledFor(c.NextRunAt.Or(s.now()), rcpt.Location, rcpt.LeadDays, rcpt.PreferredHour)
	data := s.renderContext(c, rcpt, slot)
	return map[string]string{
		"email_subject": s.Renderer.Render(c.EmailSubject, data),
		"email_body":    s.Renderer.Render(c.EmailBody, data),
		"sms_body":      s.Renderer.Render(c.SmsBody, data),
		"scheduled_for": data[KeyScheduledUTC],
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Scheduler) log() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}
