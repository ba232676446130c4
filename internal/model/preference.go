// internal/model/preference.go
package model

import "time"

const (
	DefaultPreferredHour = 9
	DefaultLeadDays      = 0
)

type Preference struct {
	ID               int64     `db:"id" json:"id"`
	CustomerID       int64     `db:"customer_id" json:"customer_id"`
	Email            *string   `db:"email" json:"email,omitempty"`
	Phone            *string   `db:"phone" json:"phone,omitempty"`
	Timezone         string    `db:"timezone" json:"timezone"`
	PreferredChannel Channel   `db:"preferred_channel" json:"preferred_channel"`
	LeadDays         int       `db:"lead_days" json:"lead_days"`
	PreferredHour    int       `db:"preferred_hour" json:"preferred_hour"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Eligible reports whether the preference lets the customer receive any campaign.
func (p Preference) Eligible() bool {
	return p.IsActive && p.PreferredChannel != ChannelNone
}

// PreferenceInput is the opt-in payload; nil fields take defaults.
type PreferenceInput struct {
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	Timezone         *string `json:"timezone"`
	PreferredChannel *string `json:"preferred_channel"`
	LeadDays         *int    `json:"lead_days"`
	PreferredHour    *int    `json:"preferred_hour"`
	IsActive         *bool   `json:"is_active"`
}
