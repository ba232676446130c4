// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
	"github.com/unclebandit/reminder-scheduler/internal/repository"
)

// CampaignService is the campaign registry: validated CRUD, the lifecycle
// state machine and cadence advancement.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	DeliveryRepo repository.DeliveryLogRepositoryInterface
	Logger       logrus.FieldLogger
	Now          func() time.Time
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CampaignService) logger() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}

func (s *CampaignService) Create(ctx context.Context, in model.CampaignInput, actorID int64) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, appErrors.NewValidation("name", "is required")
	}
	channel, err := parseCampaignChannel(in.Channel)
	if err != nil {
		return nil, err
	}
	unit, err := parseFrequencyUnit(in.FrequencyUnit)
	if err != nil {
		return nil, err
	}
	if err := validateInterval(in.FrequencyInterval); err != nil {
		return nil, err
	}

	status := model.StatusDraft
	if in.Status != "" {
		if status, err = parseStatus(in.Status); err != nil {
			return nil, err
		}
	}

	c := &model.Campaign{
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Channel:           channel,
		FrequencyUnit:     unit,
		FrequencyInterval: in.FrequencyInterval,
		Status:            status,
		ServiceTypeFilter: normalizeFilter(in.ServiceTypeFilter),
		EmailSubject:      in.EmailSubject,
		EmailBody:         in.EmailBody,
		SmsBody:           in.SmsBody,
		CreatedBy:         &actorID,
	}
	if status == model.StatusActive {
		c.NextRunAt = model.ScheduledAt(s.now())
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger().WithFields(logrus.Fields{
		"campaign_id": c.ID,
		"status":      c.Status,
		"actor_id":    actorID,
	}).Info("campaign created")
	return c, nil
}

func (s *CampaignService) Update(ctx context.Context, id int64, patch model.CampaignPatch, actorID int64) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.StatusArchived {
		return nil, appErrors.NewValidation("status", "archived campaigns cannot be modified")
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, appErrors.NewValidation("name", "is required")
		}
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Channel != nil {
		if c.Channel, err = parseCampaignChannel(*patch.Channel); err != nil {
			return nil, err
		}
	}
	if patch.FrequencyUnit != nil {
		if c.FrequencyUnit, err = parseFrequencyUnit(*patch.FrequencyUnit); err != nil {
			return nil, err
		}
	}
	if patch.FrequencyInterval != nil {
		if err := validateInterval(*patch.FrequencyInterval); err != nil {
			return nil, err
		}
		c.FrequencyInterval = *patch.FrequencyInterval
	}
	if patch.ServiceTypeFilter != nil {
		c.ServiceTypeFilter = normalizeFilter(patch.ServiceTypeFilter)
	}
	if patch.EmailSubject != nil {
		c.EmailSubject = *patch.EmailSubject
	}
	if patch.EmailBody != nil {
		c.EmailBody = *patch.EmailBody
	}
	if patch.SmsBody != nil {
		c.SmsBody = *patch.SmsBody
	}
	if patch.Status != nil {
		target, err := parseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		if err := s.transition(c, target); err != nil {
			return nil, err
		}
	}

	c.UpdatedBy = &actorID
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) Find(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// ListActive returns active campaigns ordered by next_run_at, never-run first.
func (s *CampaignService) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	return s.CampaignRepo.ListActive(ctx)
}

func (s *CampaignService) Activate(ctx context.Context, id, actorID int64) (*model.Campaign, error) {
	return s.changeStatus(ctx, id, model.StatusActive, actorID)
}

func (s *CampaignService) Pause(ctx context.Context, id, actorID int64) (*model.Campaign, error) {
	return s.changeStatus(ctx, id, model.StatusPaused, actorID)
}

func (s *CampaignService) Archive(ctx context.Context, id, actorID int64) (*model.Campaign, error) {
	return s.changeStatus(ctx, id, model.StatusArchived, actorID)
}

func (s *CampaignService) changeStatus(ctx context.Context, id int64, target model.CampaignStatus, actorID int64) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := c.Status
	if err := s.transition(c, target); err != nil {
		return nil, err
	}

	c.UpdatedBy = &actorID
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger().WithFields(logrus.Fields{
		"campaign_id": c.ID,
		"from":        from,
		"to":          c.Status,
		"actor_id":    actorID,
	}).Info("campaign status changed")
	return c, nil
}

// transition applies the lifecycle rules in place:
// draft|paused -> active (first run now), active -> paused,
// any non-archived -> archived. Same-status requests are no-ops.
func (s *CampaignService) transition(c *model.Campaign, target model.CampaignStatus) error {
	if c.Status == target {
		return nil
	}
	if c.Status == model.StatusArchived {
		return appErrors.NewValidation("status", "archived campaigns cannot change status")
	}

	switch target {
	case model.StatusActive:
		if c.Status != model.StatusDraft && c.Status != model.StatusPaused {
			return appErrors.NewValidation("status", "only draft or paused campaigns can be activated")
		}
		c.NextRunAt = model.ScheduledAt(s.now())
	case model.StatusPaused:
		if c.Status != model.StatusActive {
			return appErrors.NewValidation("status", "only active campaigns can be paused")
		}
	case model.StatusArchived:
	case model.StatusDraft:
		return appErrors.NewValidation("status", "campaigns cannot return to draft")
	}

	c.Status = target
	return nil
}

// Advance records a completed run and moves next_run_at one interval past
// the previous slot.
func (s *CampaignService) Advance(ctx context.Context, c *model.Campaign, actorID int64) error {
	now := s.now()
	next := model.ScheduledAt(model.NextRun(c.NextRunAt, c.FrequencyUnit, c.FrequencyInterval, now))

	if err := s.CampaignRepo.SaveRun(ctx, c.ID, now, next, actorID); err != nil {
		return err
	}

	c.LastRunAt = &now
	c.NextRunAt = next
	return nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, channel, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, channel, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, id int64) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.DeliveryRepo.StatsForCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

func parseCampaignChannel(raw string) (model.Channel, error) {
	if strings.TrimSpace(raw) == "" {
		return "", appErrors.NewValidation("channel", "is required")
	}
	switch ch := model.Channel(strings.ToLower(strings.TrimSpace(raw))); ch {
	case model.ChannelMail, model.ChannelSMS, model.ChannelBoth:
		return ch, nil
	}
	return "", appErrors.NewValidation("channel", "must be one of mail, sms, both")
}

func parseFrequencyUnit(raw string) (model.FrequencyUnit, error) {
	if strings.TrimSpace(raw) == "" {
		return "", appErrors.NewValidation("frequency_unit", "is required")
	}
	unit := model.FrequencyUnit(strings.ToLower(strings.TrimSpace(raw)))
	if !unit.Valid() {
		return "", appErrors.NewValidation("frequency_unit", "must be one of day, week, month")
	}
	return unit, nil
}

func validateInterval(n int) error {
	if n < 1 {
		return appErrors.NewValidation("frequency_interval", "must be at least 1")
	}
	return nil
}

func parseStatus(raw string) (model.CampaignStatus, error) {
	status := model.CampaignStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", appErrors.NewValidation("status", "must be one of draft, active, paused, archived")
	}
	return status, nil
}

func normalizeFilter(f *string) *string {
	if f == nil {
		return nil
	}
	v := strings.TrimSpace(*f)
	if v == "" {
		return nil
	}
	return &v
}
