// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	StatusDraft    CampaignStatus = "draft"
	StatusActive   CampaignStatus = "active"
	StatusPaused   CampaignStatus = "paused"
	StatusArchived CampaignStatus = "archived"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}

type FrequencyUnit string

const (
	FrequencyDay   FrequencyUnit = "day"
	FrequencyWeek  FrequencyUnit = "week"
	FrequencyMonth FrequencyUnit = "month"
)

func (u FrequencyUnit) Valid() bool {
	switch u {
	case FrequencyDay, FrequencyWeek, FrequencyMonth:
		return true
	}
	return false
}

type Campaign struct {
	ID                int64          `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Description       string         `db:"description" json:"description"`
	Channel           Channel        `db:"channel" json:"channel"`
	FrequencyUnit     FrequencyUnit  `db:"frequency_unit" json:"frequency_unit"`
	FrequencyInterval int            `db:"frequency_interval" json:"frequency_interval"`
	Status            CampaignStatus `db:"status" json:"status"`
	ServiceTypeFilter *string        `db:"service_type_filter" json:"service_type_filter,omitempty"`
	EmailSubject      string         `db:"email_subject" json:"email_subject"`
	EmailBody         string         `db:"email_body" json:"email_body"`
	SmsBody           string         `db:"sms_body" json:"sms_body"`
	LastRunAt         *time.Time     `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt         RunSlot        `db:"next_run_at" json:"next_run_at"`
	CreatedBy         *int64         `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy         *int64         `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignInput is the payload for creating a campaign. Enum fields are raw
// strings so validation can name what was wrong with them.
type CampaignInput struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Channel           string  `json:"channel"`
	FrequencyUnit     string  `json:"frequency_unit"`
	FrequencyInterval int     `json:"frequency_interval"`
	Status            string  `json:"status"`
	ServiceTypeFilter *string `json:"service_type_filter"`
	EmailSubject      string  `json:"email_subject"`
	EmailBody         string  `json:"email_body"`
	SmsBody           string  `json:"sms_body"`
}

// CampaignPatch is a partial update; nil fields are left untouched.
type CampaignPatch struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	Channel           *string `json:"channel"`
	FrequencyUnit     *string `json:"frequency_unit"`
	FrequencyInterval *int    `json:"frequency_interval"`
	Status            *string `json:"status"`
	ServiceTypeFilter *string `json:"service_type_filter"`
	EmailSubject      *string `json:"email_subject"`
	EmailBody         *string `json:"email_body"`
	SmsBody           *string `json:"sms_body"`
}
