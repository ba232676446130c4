// internal/errors/errors.go
package appErrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrSlotClaimed means a delivery log row already exists for the
	// (campaign, customer, channel, scheduled_for) slot.
	ErrSlotClaimed = errors.New("delivery slot already claimed")

	// ErrInvalidTransition is returned when a delivery log entry would leave a terminal status.
	ErrInvalidTransition = errors.New("invalid delivery status transition")
)

// ValidationError names the offending field of a rejected campaign or preference.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError is returned for unknown campaigns, customers and log entries.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

func NewCampaignNotFound(id int64) error {
	return &NotFoundError{Entity: "campaign", ID: id}
}

func NewCustomerNotFound(id int64) error {
	return &NotFoundError{Entity: "customer", ID: id}
}

func NewDeliveryNotFound(id int64) error {
	return &NotFoundError{Entity: "delivery log entry", ID: id}
}

// TransportError wraps a failed mail or SMS hand-off for one recipient.
type TransportError struct {
	Channel string
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport to %s: %v", e.Channel, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CampaignFailure records why one campaign of a run was aborted.
type CampaignFailure struct {
	CampaignID int64
	Err        error
}

// RunError collects campaign-level failures of a single RunDue call. The
// campaigns it lists were not advanced; every other campaign was.
type RunError struct {
	Failures []CampaignFailure
}

func (e *RunError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("campaign %d: %v", f.CampaignID, f.Err))
	}
	return fmt.Sprintf("%d campaign(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
