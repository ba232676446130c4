// internal/model/channel.go
package model

import "strings"

// Channel is a delivery channel as configured on campaigns and preferences.
// Delivery log entries only ever carry ChannelMail or ChannelSMS.
type Channel string

const (
	ChannelNone Channel = "none"
	ChannelMail Channel = "mail"
	ChannelSMS  Channel = "sms"
	ChannelBoth Channel = "both"
)

// NormalizeChannel maps stored or user supplied values onto the canonical
// set. The legacy "email" value is treated as mail.
func NormalizeChannel(raw string) (Channel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mail", "email":
		return ChannelMail, true
	case "sms":
		return ChannelSMS, true
	case "both":
		return ChannelBoth, true
	case "none":
		return ChannelNone, true
	}
	return "", false
}

// Expand returns the concrete channels a configured channel stands for.
func (c Channel) Expand() []Channel {
	switch c {
	case ChannelMail:
		return []Channel{ChannelMail}
	case ChannelSMS:
		return []Channel{ChannelSMS}
	case ChannelBoth:
		return []Channel{ChannelMail, ChannelSMS}
	}
	return nil
}

// EffectiveChannels intersects what a campaign sends on with what a
// recipient accepts. Order follows the campaign (mail before sms).
func EffectiveChannels(campaign, preferred Channel) []Channel {
	accepted := map[Channel]bool{}
	for _, ch := range preferred.Expand() {
		accepted[ch] = true
	}

	var out []Channel
	for _, ch := range campaign.Expand() {
		if accepted[ch] {
			out = append(out, ch)
		}
	}
	return out
}
