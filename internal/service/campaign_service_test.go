package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/model"
)

func validInput() model.CampaignInput {
	return model.CampaignInput{
		Name:              "Annual checkup",
		Channel:           "mail",
		FrequencyUnit:     "month",
		FrequencyInterval: 12,
		EmailSubject:      "Time for your checkup",
		EmailBody:         "Hi {customer_name}",
	}
}

func TestCreateDefaultsToDraft(t *testing.T) {
	h := newHarness(utc(2024, 1, 1, 0, 0))

	c, err := h.service.Create(context.Background(), validInput(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, c.Status)
	assert.False(t, c.NextRunAt.IsSet())
	assert.Equal(t, int64(3), *c.CreatedBy)
	assert.NotZero(t, c.ID)
}

func TestCreateActiveSchedulesFirstRunNow(t *testing.T) {
	now := utc(2024, 2, 1, 12, 0)
	h := newHarness(now)
	in := validInput()
	in.Status = "active"
	in.ServiceTypeFilter = strPtr("  ")

	c, err := h.service.Create(context.Background(), in, 0)
	require.NoError(t, err)
	next, ok := c.NextRunAt.Time()
	require.True(t, ok)
	assert.Equal(t, now, next)
	assert.Nil(t, c.ServiceTypeFilter, "blank filter means no filter")
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*model.CampaignInput)
		field string
	}{
		{"missing name", func(in *model.CampaignInput) { in.Name = " " }, "name"},
		{"unknown channel", func(in *model.CampaignInput) { in.Channel = "fax" }, "channel"},
		{"none channel", func(in *model.CampaignInput) { in.Channel = "none" }, "channel"},
		{"unknown unit", func(in *model.CampaignInput) { in.FrequencyUnit = "year" }, "frequency_unit"},
		{"zero interval", func(in *model.CampaignInput) { in.FrequencyInterval = 0 }, "frequency_interval"},
		{"bad status", func(in *model.CampaignInput) { in.Status = "running" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(utc(2024, 1, 1, 0, 0))
			in := validInput()
			tt.edit(&in)

			_, err := h.service.Create(context.Background(), in, 0)
			var verr *appErrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	clock := utc(2024, 1, 1, 0, 0)
	h := newHarness(clock)
	ctx := context.Background()

	c, err := h.service.Create(ctx, validInput(), 0)
	require.NoError(t, err)

	_, err = h.service.Pause(ctx, c.ID, 0)
	assert.True(t, appErrors.IsValidation(err), "draft cannot be paused")

	c, err = h.service.Activate(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, c.Status)
	next, _ := c.NextRunAt.Time()
	assert.Equal(t, clock, next)

	c, err = h.service.Pause(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, c.Status)

	h.clock.Set(clock.Add(48 * time.Hour))
	c, err = h.service.Activate(ctx, c.ID, 1)
	require.NoError(t, err)
	next, _ = c.NextRunAt.Time()
	assert.Equal(t, clock.Add(48*time.Hour), next, "reactivation starts a fresh cadence")

	c, err = h.service.Archive(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, c.Status)
	assert.Equal(t, int64(2), *c.UpdatedBy)

	_, err = h.service.Activate(ctx, c.ID, 1)
	assert.True(t, appErrors.IsValidation(err), "archived is terminal")

	_, err = h.service.Update(ctx, c.ID, model.CampaignPatch{Name: strPtr("x")}, 1)
	assert.True(t, appErrors.IsValidation(err))
}

func TestStatusChangeOnMissingCampaign(t *testing.T) {
	h := newHarness(utc(2024, 1, 1, 0, 0))
	_, err := h.service.Activate(context.Background(), 99, 0)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestUpdateAppliesPatch(t *testing.T) {
	h := newHarness(utc(2024, 1, 1, 0, 0))
	ctx := context.Background()
	c, err := h.service.Create(ctx, validInput(), 0)
	require.NoError(t, err)

	interval := 2
	updated, err := h.service.Update(ctx, c.ID, model.CampaignPatch{
		Channel:           strPtr("both"),
		FrequencyUnit:     strPtr("week"),
		FrequencyInterval: &interval,
		SmsBody:           strPtr("Hi {customer_name}"),
		ServiceTypeFilter: strPtr("dental"),
	}, 5)
	require.NoError(t, err)

	stored := h.campaigns.get(c.ID)
	assert.Equal(t, model.ChannelBoth, stored.Channel)
	assert.Equal(t, model.FrequencyWeek, stored.FrequencyUnit)
	assert.Equal(t, 2, stored.FrequencyInterval)
	assert.Equal(t, "dental", *stored.ServiceTypeFilter)
	assert.Equal(t, "Annual checkup", stored.Name)
	assert.Equal(t, int64(5), *updated.UpdatedBy)

	_, err = h.service.Update(ctx, c.ID, model.CampaignPatch{Channel: strPtr("pigeon")}, 5)
	assert.True(t, appErrors.IsValidation(err))
}

// racingCampaignRepo runs onRead after handing out a copy, so a scheduler
// run can land between an edit's read and its write.
type racingCampaignRepo struct {
	*fakeCampaignRepo
	onRead func()
}

func (r *racingCampaignRepo) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	c, err := r.fakeCampaignRepo.GetByID(ctx, id)
	if r.onRead != nil {
		read := r.onRead
		r.onRead = nil
		read()
	}
	return c, err
}

func TestEditsOverlappingARunKeepTheAdvancedCadence(t *testing.T) {
	slot := utc(2024, 1, 1, 0, 0)
	h := newHarness(slot, activeCampaign("weekly", model.ChannelMail, model.FrequencyWeek, 1, model.ScheduledAt(slot)))
	h.customers.add(model.Customer{ID: 1, Email: "a@example.com"}, mailPref())
	ctx := context.Background()

	racing := &racingCampaignRepo{fakeCampaignRepo: h.campaigns}
	admin := &CampaignService{CampaignRepo: racing, DeliveryRepo: h.deliveries, Logger: quietLogger(), Now: h.clock.Now}
	runDue := func() {
		n, err := h.scheduler.RunDue(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	racing.onRead = runDue
	updated, err := admin.Update(ctx, 1, model.CampaignPatch{Description: strPtr("reworded")}, 9)
	require.NoError(t, err)

	stored := h.campaigns.get(1)
	assert.Equal(t, "reworded", stored.Description)
	next, _ := stored.NextRunAt.Time()
	assert.Equal(t, utc(2024, 1, 8, 0, 0), next)
	require.NotNil(t, stored.LastRunAt)
	returned, _ := updated.NextRunAt.Time()
	assert.Equal(t, next, returned)

	n, err := h.scheduler.RunDue(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Set(utc(2024, 1, 8, 0, 0))
	racing.onRead = runDue
	_, err = admin.Pause(ctx, 1, 9)
	require.NoError(t, err)

	stored = h.campaigns.get(1)
	assert.Equal(t, model.StatusPaused, stored.Status)
	next, _ = stored.NextRunAt.Time()
	assert.Equal(t, utc(2024, 1, 15, 0, 0), next)
	mails, _ := h.dispatcher.counts()
	assert.Equal(t, 2, mails)
}

func TestAdvanceClampsMonthEnd(t *testing.T) {
	c := activeCampaign("monthly", model.ChannelMail, model.FrequencyMonth, 1, model.ScheduledAt(utc(2024, 1, 31, 6, 0)))
	h := newHarness(utc(2024, 2, 1, 0, 0), c)

	stored := h.campaigns.get(1)
	require.NoError(t, h.service.Advance(context.Background(), stored, 0))

	next, _ := stored.NextRunAt.Time()
	assert.Equal(t, utc(2024, 2, 29, 6, 0), next)
	persisted, _ := h.campaigns.get(1).NextRunAt.Time()
	assert.Equal(t, next, persisted)
}

func TestPagination(t *testing.T) {
	h := newHarness(utc(2024, 1, 1, 0, 0))
	for i := 0; i < 5; i++ {
		_, err := h.service.Create(context.Background(), validInput(), 0)
		require.NoError(t, err)
	}
	pageSize := 2

	page1, pagination1, err := h.service.ListCampaigns(context.Background(), 1, pageSize, "", "")
	require.NoError(t, err)
	page2, _, _ := h.service.ListCampaigns(context.Background(), 2, pageSize, "", "")
	page3, pagination3, _ := h.service.ListCampaigns(context.Background(), 3, pageSize, "", "")

	assert.Equal(t, 5, pagination1["total_count"])
	assert.Equal(t, 3, pagination1["total_pages"])
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.Len(t, page3, 1)
	assert.Greater(t, page1[0].ID, page1[1].ID, "expected descending order")
	assert.NotEqual(t, page1[1].ID, page2[0].ID)
	assert.Equal(t, 5, pagination3["total_count"])
}

func TestCampaignDetailsIncludeStats(t *testing.T) {
	h := newHarness(utc(2024, 1, 1, 0, 0),
		activeCampaign("stats", model.ChannelMail, model.FrequencyDay, 1, model.NeverRun()))
	h.customers.add(model.Customer{ID: 1, Email: "a@example.com"}, mailPref())
	h.customers.add(model.Customer{ID: 2}, mailPref())

	_, err := h.scheduler.RunDue(context.Background(), 0)
	require.NoError(t, err)

	details, err := h.service.GetCampaignDetailsWithStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"sent": 1, "skipped": 1}, details.Stats)
	assert.Equal(t, "stats", details.Name)
}
