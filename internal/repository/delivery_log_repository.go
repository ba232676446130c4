package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type DeliveryLogRepositoryInterface interface {
	// Record inserts a queued or skipped entry. The unique slot constraint
	// makes it the claim: a second insert for the same slot returns
	// appErrors.ErrSlotClaimed.
	Record(ctx context.Context, e *model.DeliveryLogEntry) error
	ExistsForSlot(ctx context.Context, key model.SlotKey) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status model.DeliveryStatus, body *string, errMsg *string) error
	ForCampaign(ctx context.Context, campaignID int64, limit int) ([]model.DeliveryLogEntry, error)
	StatsForCampaign(ctx context.Context, campaignID int64) (map[string]int, error)
}

type DeliveryLogRepository struct {
	DB *sql.DB
}

func (r *DeliveryLogRepository) Record(ctx context.Context, e *model.DeliveryLogEntry) error {
	if e.Status != model.DeliveryQueued && e.Status != model.DeliverySkipped {
		return errors.Wrapf(appErrors.ErrInvalidTransition, "cannot record entry as %s", e.Status)
	}

	now := time.Now().UTC()
	e.ScheduledFor = e.ScheduledFor.UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
		INSERT INTO delivery_logs
			(campaign_id, preference_id, customer_id, channel, status, scheduled_for, rendered_body, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, e.CampaignID, e.PreferenceID, e.CustomerID, e.Channel, e.Status,
		e.ScheduledFor, e.RenderedBody, e.Error, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrSlotClaimed
		}
		return errors.Wrap(err, "insert delivery log entry")
	}
	return nil
}

func (r *DeliveryLogRepository) ExistsForSlot(ctx context.Context, key model.SlotKey) (bool, error) {
	query := `
		SELECT 1 FROM delivery_logs
		WHERE campaign_id = $1 AND customer_id = $2 AND channel = $3 AND scheduled_for = $4
		LIMIT 1
	`
	var tmp int
	err := r.DB.QueryRowContext(ctx, query, key.CampaignID, key.CustomerID, key.Channel, key.ScheduledFor.UTC()).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrap(err, "check delivery slot")
	}
	return true, nil
}

// UpdateStatus moves a queued entry to a terminal status. The WHERE clause
// enforces the transition so a concurrent writer can never reopen an entry.
func (r *DeliveryLogRepository) UpdateStatus(ctx context.Context, id int64, status model.DeliveryStatus, body *string, errMsg *string) error {
	if !model.DeliveryQueued.CanTransition(status) {
		return errors.Wrapf(appErrors.ErrInvalidTransition, "queued -> %s", status)
	}

	var sentAt *time.Time
	if status.Dispatched() {
		now := time.Now().UTC()
		sentAt = &now
	}

	query := `
		UPDATE delivery_logs
		SET status = $1,
			rendered_body = COALESCE($2, rendered_body),
			error = $3,
			sent_at = $4,
			updated_at = NOW()
		WHERE id = $5 AND status = 'queued'
	`
	res, err := r.DB.ExecContext(ctx, query, status, body, errMsg, sentAt, id)
	if err != nil {
		return errors.Wrapf(err, "update delivery log entry %d", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM delivery_logs WHERE id = $1`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return appErrors.NewDeliveryNotFound(id)
	}
	if err != nil {
		return errors.Wrapf(err, "read delivery log entry %d", id)
	}
	return errors.Wrapf(appErrors.ErrInvalidTransition, "%s -> %s", current, status)
}

func (r *DeliveryLogRepository) ForCampaign(ctx context.Context, campaignID int64, limit int) ([]model.DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, campaign_id, preference_id, customer_id, channel, status, scheduled_for, sent_at,
			rendered_body, error, created_at, updated_at
		FROM delivery_logs
		WHERE campaign_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list deliveries of campaign %d", campaignID)
	}
	defer rows.Close()

	entries := []model.DeliveryLogEntry{}
	for rows.Next() {
		var (
			e      model.DeliveryLogEntry
			prefID sql.NullInt64
			sentAt sql.NullTime
			errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CampaignID, &prefID, &e.CustomerID, &e.Channel, &e.Status, &e.ScheduledFor,
			&sentAt, &e.RenderedBody, &errMsg, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan delivery log entry")
		}
		e.ScheduledFor = e.ScheduledFor.UTC()
		if prefID.Valid {
			e.PreferenceID = &prefID.Int64
		}
		if sentAt.Valid {
			e.SentAt = &sentAt.Time
		}
		if errMsg.Valid {
			e.Error = &errMsg.String
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate delivery log entries")
}

func (r *DeliveryLogRepository) StatsForCampaign(ctx context.Context, campaignID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM delivery_logs WHERE campaign_id = $1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, errors.Wrapf(err, "delivery stats of campaign %d", campaignID)
	}
	defer rows.Close()

	stats := map[string]int{"total": 0, "queued": 0, "pending": 0, "sent": 0, "failed": 0, "skipped": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "scan delivery stats")
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, errors.Wrap(rows.Err(), "iterate delivery stats")
}

var _ DeliveryLogRepositoryInterface = (*DeliveryLogRepository)(nil)
