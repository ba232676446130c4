// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
	"github.com/unclebandit/reminder-scheduler/internal/handler"
	"github.com/unclebandit/reminder-scheduler/internal/model"
	"github.com/unclebandit/reminder-scheduler/internal/queue"
	"github.com/unclebandit/reminder-scheduler/internal/repository"
	"github.com/unclebandit/reminder-scheduler/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Preferences     *service.PreferenceService
	Customers       repository.CustomerRepositoryInterface
	Resolver        *service.RecipientResolver
	Previewer       *service.Scheduler
	Queue           queue.Queue
	Logger          logrus.FieldLogger
}

func (c *CampaignController) Routes(r chi.Router) {
	r.Post("/campaigns", c.CreateCampaign)
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaignDetails)
	r.Patch("/campaigns/{id}", c.UpdateCampaign)
	r.Post("/campaigns/{id}/activate", c.Activate)
	r.Post("/campaigns/{id}/pause", c.Pause)
	r.Post("/campaigns/{id}/archive", c.Archive)
	r.Post("/campaigns/{id}/preview", c.PersonalizedPreview)
	r.Post("/scheduler/run", c.TriggerRun)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, err := handler.ActorID(r)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	var body model.CampaignInput
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	campaign, err := c.CampaignService.Create(r.Context(), body, actor)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	channel := r.URL.Query().Get("channel")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, channel, status)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	actor, err := handler.ActorID(r)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	var patch model.CampaignPatch
	if err := handler.DecodeJSON(r, &patch); err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	campaign, err := c.CampaignService.Update(r.Context(), id, patch, actor)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Activate(w http.ResponseWriter, r *http.Request) {
	c.changeStatus(w, r, c.CampaignService.Activate)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	c.changeStatus(w, r, c.CampaignService.Pause)
}

func (c *CampaignController) Archive(w http.ResponseWriter, r *http.Request) {
	c.changeStatus(w, r, c.CampaignService.Archive)
}

type statusChange func(ctx context.Context, id, actorID int64) (*model.Campaign, error)

func (c *CampaignController) changeStatus(w http.ResponseWriter, r *http.Request, change statusChange) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	actor, err := handler.ActorID(r)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	campaign, err := change(r.Context(), id, actor)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, campaign)
}

// PersonalizedPreview renders the campaign for one customer as the next run
// would, without recording or sending anything.
func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	var body struct {
		CustomerID int64 `json:"customer_id"`
	}
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	if body.CustomerID <= 0 {
		handler.WriteError(w, c.Logger, appErrors.NewValidation("customer_id", "is required"))
		return
	}

	ctx := r.Context()
	campaign, err := c.CampaignService.Find(ctx, id)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	customer, err := c.Customers.GetByID(ctx, body.CustomerID)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	pref, err := c.Preferences.FindByCustomer(ctx, body.CustomerID)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	rcpt, eligible, err := c.Resolver.ResolveCustomer(ctx, campaign, *customer, pref)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}
	channels := []model.Channel{}
	if eligible {
		channels = append(channels, model.EffectiveChannels(campaign.Channel, rcpt.PreferredChannel)...)
	}
	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id":       campaign.ID,
		"customer_id":       customer.ID,
		"eligible":          eligible,
		"channels":          channels,
		"timezone_fallback": rcpt.TimezoneFallback,
		"rendered":          c.Previewer.Preview(campaign, rcpt),
	})
}

// TriggerRun asks the worker to run due campaigns now.
func (c *CampaignController) TriggerRun(w http.ResponseWriter, r *http.Request) {
	actor, err := handler.ActorID(r)
	if err != nil {
		handler.WriteError(w, c.Logger, err)
		return
	}

	if err := queue.PublishRunTrigger(r.Context(), c.Queue, actor); err != nil {
		c.Logger.WithError(err).Error("failed to publish run trigger")
		handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "failed to queue scheduler run"})
		return
	}

	handler.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "queued",
		"actor_id": actor,
	})
}
