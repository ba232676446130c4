// internal/handler/respond.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/reminder-scheduler/internal/errors"
)

// ActorHeader carries the id of the operator making a change.
const ActorHeader = "X-Actor-ID"

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var verr *appErrors.ValidationError
	var nf *appErrors.NotFoundError

	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &nf):
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": nf.Error()})
	case errors.Is(err, appErrors.ErrInvalidTransition):
		WriteJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.WithError(err).Error("request failed")
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// IDParam reads a positive integer path parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.NewValidation(name, "must be a positive integer")
	}
	return id, nil
}

// ActorID reads the acting operator from ActorHeader; 0 means unknown.
func ActorID(r *http.Request) (int64, error) {
	raw := r.Header.Get(ActorHeader)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, appErrors.NewValidation(ActorHeader, "must be a non-negative integer")
	}
	return id, nil
}

func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	return nil
}
