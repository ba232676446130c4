package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type PreferenceRepositoryInterface interface {
	// FindByCustomer returns nil, nil when the customer has no preference row.
	FindByCustomer(ctx context.Context, customerID int64) (*model.Preference, error)
	Upsert(ctx context.Context, p *model.Preference) error
}

type PreferenceRepository struct {
	DB *sql.DB
}

func (r *PreferenceRepository) FindByCustomer(ctx context.Context, customerID int64) (*model.Preference, error) {
	query := `
		SELECT id, customer_id, email, phone, timezone, preferred_channel, lead_days, preferred_hour,
			is_active, created_at, updated_at
		FROM customer_preferences
		WHERE customer_id = $1
	`
	var (
		p     model.Preference
		email sql.NullString
		phone sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, customerID).Scan(&p.ID, &p.CustomerID, &email, &phone, &p.Timezone,
		&p.PreferredChannel, &p.LeadDays, &p.PreferredHour, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find preference of customer %d", customerID)
	}
	if email.Valid {
		p.Email = &email.String
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	return &p, nil
}

// Upsert inserts or replaces the single preference row of a customer.
func (r *PreferenceRepository) Upsert(ctx context.Context, p *model.Preference) error {
	query := `
		INSERT INTO customer_preferences (customer_id, email, phone, timezone, preferred_channel, lead_days,
			preferred_hour, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (customer_id) DO UPDATE
		SET email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			timezone = EXCLUDED.timezone,
			preferred_channel = EXCLUDED.preferred_channel,
			lead_days = EXCLUDED.lead_days,
			preferred_hour = EXCLUDED.preferred_hour,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRowContext(ctx, query, p.CustomerID, p.Email, p.Phone, p.Timezone, p.PreferredChannel,
		p.LeadDays, p.PreferredHour, p.IsActive).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return errors.Wrapf(err, "upsert preference of customer %d", p.CustomerID)
}

var _ PreferenceRepositoryInterface = (*PreferenceRepository)(nil)
