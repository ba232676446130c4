// internal/model/delivery_log.go
package model

import "time"

type DeliveryStatus string

const (
	DeliveryQueued  DeliveryStatus = "queued"
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

const SkipReasonNoContact = "missing contact or opted out"

func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryPending, DeliverySent, DeliveryFailed, DeliverySkipped:
		return true
	}
	return false
}

// Dispatched reports whether the status counts as handed to a transport.
func (s DeliveryStatus) Dispatched() bool {
	return s == DeliverySent || s == DeliveryPending
}

// CanTransition allows queued to move to sent, pending or failed, and
// nothing else. Terminal entries are never reopened.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	if s != DeliveryQueued {
		return false
	}
	switch next {
	case DeliverySent, DeliveryPending, DeliveryFailed:
		return true
	}
	return false
}

type DeliveryLogEntry struct {
	ID           int64          `db:"id" json:"id"`
	CampaignID   int64          `db:"campaign_id" json:"campaign_id"`
	PreferenceID *int64         `db:"preference_id" json:"preference_id,omitempty"`
	CustomerID   int64          `db:"customer_id" json:"customer_id"`
	Channel      Channel        `db:"channel" json:"channel"`
	Status       DeliveryStatus `db:"status" json:"status"`
	ScheduledFor time.Time      `db:"scheduled_for" json:"scheduled_for"`
	SentAt       *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	RenderedBody string         `db:"rendered_body" json:"rendered_body"`
	Error        *string        `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// SlotKey identifies one send slot. PreferenceID travels with the key for
// the audit record but uniqueness is over the other four fields.
type SlotKey struct {
	CampaignID   int64
	PreferenceID *int64
	CustomerID   int64
	Channel      Channel
	ScheduledFor time.Time
}

func (e DeliveryLogEntry) Key() SlotKey {
	return SlotKey{
		CampaignID:   e.CampaignID,
		PreferenceID: e.PreferenceID,
		CustomerID:   e.CustomerID,
		Channel:      e.Channel,
		ScheduledFor: e.ScheduledFor,
	}
}
