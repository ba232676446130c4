// internal/handler/preference_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type PreferenceStore interface {
	FindByCustomer(ctx context.Context, customerID int64) (*model.Preference, error)
	Upsert(ctx context.Context, customerID int64, in model.PreferenceInput) (*model.Preference, error)
}

// PreferenceHandler exposes a customer's reminder preference.
type PreferenceHandler struct {
	Preferences PreferenceStore
	Logger      logrus.FieldLogger
}

func (h *PreferenceHandler) Routes(r chi.Router) {
	r.Get("/customers/{id}/preference", h.Get)
	r.Put("/customers/{id}/preference", h.Put)
}

func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}

	pref, err := h.Preferences.FindByCustomer(r.Context(), id)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	if pref == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "customer has no reminder preference"})
		return
	}
	WriteJSON(w, http.StatusOK, pref)
}

func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}

	var in model.PreferenceInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteError(w, h.Logger, err)
		return
	}

	pref, err := h.Preferences.Upsert(r.Context(), id, in)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, pref)
}
