// internal/service/recipient_resolver.go
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/model"
	"github.com/unclebandit/reminder-scheduler/internal/repository"
)

// RecipientResolver turns customers and their preferences into the
// recipient set of one campaign run.
type RecipientResolver struct {
	CustomerRepo repository.CustomerRepositoryInterface
	// AllCustomers switches to the preference-less mode: every non-deleted
	// customer is a recipient on both channels with default timing, unless
	// an existing preference row opts them out.
	AllCustomers bool
	Logger       logrus.FieldLogger
}

func (r *RecipientResolver) Resolve(ctx context.Context, c *model.Campaign) ([]model.Recipient, error) {
	serviceType := ""
	if c.ServiceTypeFilter != nil {
		serviceType = *c.ServiceTypeFilter
	}

	contacts, err := r.CustomerRepo.ListContacts(ctx, serviceType, !r.AllCustomers)
	if err != nil {
		return nil, err
	}

	recipients := make([]model.Recipient, 0, len(contacts))
	for _, contact := range contacts {
		rcpt, ok := r.recipientFor(contact)
		if !ok {
			continue
		}
		if rcpt.TimezoneFallback {
			r.log().WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"customer_id": rcpt.CustomerID,
			}).Warn("unknown timezone on preference, scheduling in UTC")
		}
		recipients = append(recipients, rcpt)
	}
	return recipients, nil
}

// ResolveCustomer builds the recipient for a single customer and reports
// whether a run of c would reach them, applying the same rules as Resolve.
// Used for previews.
func (r *RecipientResolver) ResolveCustomer(ctx context.Context, c *model.Campaign, customer model.Customer, pref *model.Preference) (model.Recipient, bool, error) {
	rcpt, ok := r.recipientFor(model.CustomerContact{Customer: customer, Preference: pref})
	if !ok || customer.DeletedAt != nil {
		return rcpt, false, nil
	}
	if c.ServiceTypeFilter != nil && *c.ServiceTypeFilter != "" {
		invoiced, err := r.CustomerRepo.HasServiceType(ctx, customer.ID, *c.ServiceTypeFilter)
		if err != nil {
			return rcpt, false, err
		}
		return rcpt, invoiced, nil
	}
	return rcpt, true, nil
}

func (r *RecipientResolver) recipientFor(contact model.CustomerContact) (model.Recipient, bool) {
	cust := contact.Customer
	rcpt := model.Recipient{
		CustomerID:       cust.ID,
		DisplayName:      cust.DisplayName(),
		Email:            cust.Email,
		Phone:            cust.Phone,
		Location:         model.ResolveTimezone(model.DefaultTimezone).Location,
		PreferredChannel: model.ChannelBoth,
		LeadDays:         model.DefaultLeadDays,
		PreferredHour:    model.DefaultPreferredHour,
	}

	p := contact.Preference
	if p == nil {
		return rcpt, r.AllCustomers
	}

	pref := *p
	if ch, ok := model.NormalizeChannel(string(p.PreferredChannel)); ok {
		pref.PreferredChannel = ch
	} else {
		pref.PreferredChannel = model.ChannelNone
	}
	if !pref.Eligible() {
		return rcpt, false
	}
	p = &pref

	id := p.ID
	rcpt.PreferenceID = &id
	rcpt.PreferredChannel = p.PreferredChannel
	rcpt.LeadDays = p.LeadDays
	rcpt.PreferredHour = p.PreferredHour
	if p.Email != nil && *p.Email != "" {
		rcpt.Email = *p.Email
	}
	if p.Phone != nil && *p.Phone != "" {
		rcpt.Phone = *p.Phone
	}

	tz := model.ResolveTimezone(p.Timezone)
	rcpt.Location = tz.Location
	rcpt.TimezoneFallback = tz.Fallback
	return rcpt, true
}

func (r *RecipientResolver) log() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger()
}
