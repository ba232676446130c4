package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
)

// CustomerRepositoryInterface is the read-only customer and invoice surface
// the recipient resolver needs.
type CustomerRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	// ListContacts returns non-deleted customers joined with their preference
	// row. With withPreferenceOnly only customers holding an active,
	// non-"none" preference are returned. A non-empty serviceType restricts
	// the result to customers invoiced for that service.
	ListContacts(ctx context.Context, serviceType string, withPreferenceOnly bool) ([]model.CustomerContact, error)
	// HasServiceType applies ListContacts' service filter to one customer.
	HasServiceType(ctx context.Context, customerID int64, serviceType string) (bool, error)
}

// CustomerRepository is the concrete implementation
type CustomerRepository struct {
	DB *sql.DB
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, deleted_at
		FROM customers
		WHERE id = $1
	`
	var (
		c         model.Customer
		deletedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCustomerNotFound(id)
		}
		return nil, errors.Wrapf(err, "get customer %d", id)
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

func (r *CustomerRepository) ListContacts(ctx context.Context, serviceType string, withPreferenceOnly bool) ([]model.CustomerContact, error) {
	query := `
		SELECT c.id, c.first_name, c.last_name, c.email, c.phone,
			p.id, p.email, p.phone, p.timezone, p.preferred_channel, p.lead_days, p.preferred_hour, p.is_active
		FROM customers c
		LEFT JOIN customer_preferences p ON p.customer_id = c.id
		WHERE c.deleted_at IS NULL
		  AND ($1 = FALSE OR (p.is_active AND p.preferred_channel <> 'none'))
		  AND ($2 = '' OR EXISTS (
			SELECT 1
			FROM invoices i
			JOIN invoice_items ii ON ii.invoice_id = i.id
			WHERE i.customer_id = c.id
			  AND i.deleted_at IS NULL
			  AND ii.service_type = $2
		  ))
		ORDER BY c.id
	`
	rows, err := r.DB.QueryContext(ctx, query, withPreferenceOnly, serviceType)
	if err != nil {
		return nil, errors.Wrap(err, "list customer contacts")
	}
	defer rows.Close()

	contacts := []model.CustomerContact{}
	for rows.Next() {
		var (
			c         model.Customer
			prefID    sql.NullInt64
			prefEmail sql.NullString
			prefPhone sql.NullString
			timezone  sql.NullString
			channel   sql.NullString
			leadDays  sql.NullInt64
			hour      sql.NullInt64
			active    sql.NullBool
		)
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
			&prefID, &prefEmail, &prefPhone, &timezone, &channel, &leadDays, &hour, &active); err != nil {
			return nil, errors.Wrap(err, "scan customer contact")
		}

		contact := model.CustomerContact{Customer: c}
		if prefID.Valid {
			p := &model.Preference{
				ID:               prefID.Int64,
				CustomerID:       c.ID,
				Timezone:         timezone.String,
				PreferredChannel: model.Channel(channel.String),
				LeadDays:         int(leadDays.Int64),
				PreferredHour:    int(hour.Int64),
				IsActive:         active.Bool,
			}
			if prefEmail.Valid {
				p.Email = &prefEmail.String
			}
			if prefPhone.Valid {
				p.Phone = &prefPhone.String
			}
			contact.Preference = p
		}
		contacts = append(contacts, contact)
	}
	return contacts, errors.Wrap(rows.Err(), "iterate customer contacts")
}

func (r *CustomerRepository) HasServiceType(ctx context.Context, customerID int64, serviceType string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM invoices i
			JOIN invoice_items ii ON ii.invoice_id = i.id
			WHERE i.customer_id = $1
			  AND i.deleted_at IS NULL
			  AND ii.service_type = $2
		)
	`
	var ok bool
	if err := r.DB.QueryRowContext(ctx, query, customerID, serviceType).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "check service %q for customer %d", serviceType, customerID)
	}
	return ok, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
