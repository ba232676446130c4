package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	Update(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, channel, status string) ([]*model.Campaign, int, error)
	ListActive(ctx context.Context) ([]*model.Campaign, error)
	SaveRun(ctx context.Context, id int64, lastRunAt time.Time, nextRunAt model.RunSlot, actorID int64) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, description, channel, frequency_unit, frequency_interval, status,
	service_type_filter, email_subject, email_body, sms_body, last_run_at, next_run_at,
	created_by, updated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c             model.Campaign
		serviceFilter sql.NullString
		lastRunAt     sql.NullTime
		createdBy     sql.NullInt64
		updatedBy     sql.NullInt64
		updatedAt     sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Channel, &c.FrequencyUnit, &c.FrequencyInterval, &c.Status,
		&serviceFilter, &c.EmailSubject, &c.EmailBody, &c.SmsBody, &lastRunAt, &c.NextRunAt,
		&createdBy, &updatedBy, &c.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if serviceFilter.Valid {
		c.ServiceTypeFilter = &serviceFilter.String
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time.UTC()
		c.LastRunAt = &t
	}
	if createdBy.Valid {
		c.CreatedBy = &createdBy.Int64
	}
	if updatedBy.Valid {
		c.UpdatedBy = &updatedBy.Int64
	}
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}
	return &c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	query := `
		INSERT INTO campaigns (name, description, channel, frequency_unit, frequency_interval, status,
			service_type_filter, email_subject, email_body, sms_body, next_run_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, c.Name, c.Description, c.Channel, c.FrequencyUnit, c.FrequencyInterval,
		c.Status, c.ServiceTypeFilter, c.EmailSubject, c.EmailBody, c.SmsBody, c.NextRunAt, c.CreatedBy, c.CreatedAt).
		Scan(&c.ID)
	return errors.Wrap(err, "insert campaign")
}

// Update writes the editable fields and status. next_run_at is written only
// when the stored row moves into active; otherwise it belongs to SaveRun, so a
// stale copy cannot rewind a run that advanced in the meantime.
func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC()
	query := `
		UPDATE campaigns
		SET name=$1, description=$2, channel=$3, frequency_unit=$4, frequency_interval=$5, status=$6,
			service_type_filter=$7, email_subject=$8, email_body=$9, sms_body=$10,
			next_run_at = CASE WHEN status <> 'active' AND $6::text = 'active' THEN $11 ELSE next_run_at END,
			updated_by=$12, updated_at=$13
		WHERE id=$14
		RETURNING next_run_at
	`
	err := r.DB.QueryRowContext(ctx, query, c.Name, c.Description, c.Channel, c.FrequencyUnit, c.FrequencyInterval,
		c.Status, c.ServiceTypeFilter, c.EmailSubject, c.EmailBody, c.SmsBody, c.NextRunAt, c.UpdatedBy, now, c.ID).
		Scan(&c.NextRunAt)
	if err == sql.ErrNoRows {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	if err != nil {
		return errors.Wrapf(err, "update campaign %d", c.ID)
	}
	c.UpdatedAt = &now
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, errors.Wrapf(err, "get campaign %d", id)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if channel != "" {
		where += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, channel)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count campaigns")
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	campaigns, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ListActive returns active campaigns, never-run ones first, then by next_run_at.
func (r *CampaignRepository) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status = 'active'
		ORDER BY next_run_at ASC NULLS FIRST, id ASC`
	return r.query(ctx, query)
}

func (r *CampaignRepository) SaveRun(ctx context.Context, id int64, lastRunAt time.Time, nextRunAt model.RunSlot, actorID int64) error {
	query := `UPDATE campaigns SET last_run_at=$1, next_run_at=$2, updated_by=$3, updated_at=NOW() WHERE id=$4`
	res, err := r.DB.ExecContext(ctx, query, lastRunAt.UTC(), nextRunAt, actorID, id)
	if err != nil {
		return errors.Wrapf(err, "save run of campaign %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

func (r *CampaignRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query campaigns")
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, errors.Wrap(rows.Err(), "iterate campaigns")
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
