// Package api exposes the alert and incident workflow over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/rampart/internal/alert"
	"github.com/linnemanlabs/rampart/internal/incident"
	"github.com/linnemanlabs/rampart/internal/socerr"
)

// AlertService defines the alert operations the API needs.
type AlertService interface {
	Create(ctx context.Context, in alert.CreateInput) (*alert.CreateResult, error)
	Get(ctx context.Context, tenantID, id string) (*alert.Alert, error)
	Claim(ctx context.Context, tenantID, alertID, analystID string) (*alert.Alert, error)
	Escalate(ctx context.Context, tenantID, alertID, analystID string) (*alert.Alert, string, error)
	Resolve(ctx context.Context, tenantID, alertID, analystID string, outcome alert.Outcome, notes string) (*alert.Alert, error)
}

// IncidentService defines the incident operations the API needs.
type IncidentService interface {
	Get(ctx context.Context, tenantID, id string) (*incident.Incident, error)
	StartWork(ctx context.Context, tenantID, id string) (*incident.Incident, error)
	Resolve(ctx context.Context, tenantID, id, summary string) (*incident.Incident, error)
	Dismiss(ctx context.Context, tenantID, id, justification string) (*incident.Incident, error)
	SLA(ctx context.Context, tenantID, id string) (*incident.SLAStatus, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	alerts    AlertService
	incidents IncidentService
}

// New creates a new API handler.
func New(logger log.Logger, alerts AlertService, incidents IncidentService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if alerts == nil {
		panic(xerrors.New("alert service is required"))
	}
	if incidents == nil {
		panic(xerrors.New("incident service is required"))
	}
	return &API{
		logger:    logger,
		alerts:    alerts,
		incidents: incidents,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", a.handleCreateAlert)
			r.Get("/{id}", a.handleGetAlert)
			r.Post("/{id}/claim", a.handleClaimAlert)
			r.Post("/{id}/escalate", a.handleEscalateAlert)
			r.Post("/{id}/resolve", a.handleResolveAlert)
		})
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/{id}", a.handleGetIncident)
			r.Post("/{id}/start", a.handleStartIncident)
			r.Post("/{id}/resolve", a.handleResolveIncident)
			r.Post("/{id}/dismiss", a.handleDismissIncident)
			r.Get("/{id}/sla", a.handleIncidentSLA)
		})
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := socerr.CodeOf(err)

	var status int
	switch code {
	case socerr.CodeValidation:
		status = http.StatusBadRequest
	case socerr.CodeNotFound:
		status = http.StatusNotFound
	case socerr.CodeConflict:
		status = http.StatusConflict
	case socerr.CodeUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
		msg = "internal error"
	}

	writeJSON(w, status, errorBody{Code: string(code), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: string(socerr.CodeValidation), Message: "invalid payload"})
		return false
	}
	return true
}
