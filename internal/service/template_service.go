// internal/service/template_service.go
package service

import (
	"strings"
)

// Context keys supplied to every campaign template. Placeholders are written
// as {key}.
const (
	KeyCampaignName   = "campaign_name"
	KeyCustomerID     = "customer_id"
	KeyCustomerName   = "customer_name"
	KeyScheduledLocal = "scheduled_local"
	KeyScheduledUTC   = "scheduled_utc"
)

// TemplateKeys lists every key the scheduler puts in a render context.
var TemplateKeys = []string{
	KeyCampaignName,
	KeyCustomerID,
	KeyCustomerName,
	KeyScheduledLocal,
	KeyScheduledUTC,
}

// Renderer substitutes a context into a template. Implementations must be
// free of side effects.
type Renderer interface {
	Render(template string, data map[string]string) string
}

type PlaceholderRenderer struct{}

func (PlaceholderRenderer) Render(template string, data map[string]string) string {
	return RenderTemplate(template, data)
}

func RenderTemplate(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
