// internal/service/preference_service.go
package service

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
	"github.com/unclebandit/reminder-scheduler/internal/repository"
)

// PreferenceService is the per-customer opt-in store. There is no delete;
// customers opt out by deactivating.
type PreferenceService struct {
	PreferenceRepo repository.PreferenceRepositoryInterface
	CustomerRepo   repository.CustomerRepositoryInterface
}

// FindByCustomer returns nil, nil when the customer never opted in.
func (s *PreferenceService) FindByCustomer(ctx context.Context, customerID int64) (*model.Preference, error) {
	return s.PreferenceRepo.FindByCustomer(ctx, customerID)
}

// Upsert replaces the customer's preference with in. Omitted fields keep
// their stored value, or the default when the row is new.
func (s *PreferenceService) Upsert(ctx context.Context, customerID int64, in model.PreferenceInput) (*model.Preference, error) {
	if _, err := s.CustomerRepo.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	p, err := s.PreferenceRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &model.Preference{
			CustomerID:       customerID,
			Timezone:         model.DefaultTimezone,
			PreferredChannel: model.ChannelMail,
			LeadDays:         model.DefaultLeadDays,
			PreferredHour:    model.DefaultPreferredHour,
			IsActive:         true,
		}
	}

	if in.Email != nil {
		p.Email = optionalContact(*in.Email)
	}
	if in.Phone != nil {
		p.Phone = optionalContact(*in.Phone)
	}
	if in.Timezone != nil {
		tz := strings.TrimSpace(*in.Timezone)
		if tz == "" {
			tz = model.DefaultTimezone
		}
		if res := model.ResolveTimezone(tz); res.Fallback {
			return nil, appErrors.NewValidation("timezone", "unknown IANA timezone "+tz)
		}
		p.Timezone = tz
	}
	if in.PreferredChannel != nil {
		ch, ok := model.NormalizeChannel(*in.PreferredChannel)
		if !ok {
			return nil, appErrors.NewValidation("preferred_channel", "must be one of none, mail, sms, both")
		}
		p.PreferredChannel = ch
	}
	if in.LeadDays != nil {
		if *in.LeadDays < 0 {
			return nil, appErrors.NewValidation("lead_days", "must not be negative")
		}
		p.LeadDays = *in.LeadDays
	}
	if in.PreferredHour != nil {
		if *in.PreferredHour < 0 || *in.PreferredHour > 23 {
			return nil, appErrors.NewValidation("preferred_hour", "must be between 0 and 23")
		}
		p.PreferredHour = *in.PreferredHour
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if err := s.PreferenceRepo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func optionalContact(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
