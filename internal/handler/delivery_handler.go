// internal/handler/delivery_handler.go
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type DeliveryHistory interface {
	ForCampaign(ctx context.Context, campaignID int64, limit int) ([]model.DeliveryLogEntry, error)
}

type CampaignFinder interface {
	Find(ctx context.Context, id int64) (*model.Campaign, error)
}

// DeliveryHandler lists the delivery log of a campaign, newest first.
type DeliveryHandler struct {
	Deliveries DeliveryHistory
	Campaigns  CampaignFinder
	Logger     logrus.FieldLogger
}

func (h *DeliveryHandler) Routes(r chi.Router) {
	r.Get("/campaigns/{id}/deliveries", h.List)
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	if _, err := h.Campaigns.Find(r.Context(), id); err != nil {
		WriteError(w, h.Logger, err)
		return
	}

	entries, err := h.Deliveries.ForCampaign(r.Context(), id, limit)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []model.DeliveryLogEntry{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":  entries,
		"limit": limit,
	})
}
