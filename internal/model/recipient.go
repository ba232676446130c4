// internal/model/recipient.go
package model

import "time"

// Recipient is a customer resolved for one campaign run. It is never persisted.
type Recipient struct {
	CustomerID       int64
	PreferenceID     *int64
	DisplayName      string
	Email            string
	Phone            string
	Location         *time.Location
	TimezoneFallback bool
	PreferredChannel Channel
	LeadDays         int
	PreferredHour    int
}

// Address returns the contact for a concrete channel.
func (r Recipient) Address(ch Channel) string {
	switch ch {
	case ChannelMail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	}
	return ""
}
