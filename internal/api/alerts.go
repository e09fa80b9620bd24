package api

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/rampart/internal/alert"
	"github.com/linnemanlabs/rampart/internal/authmw"
)

func (a *API) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var in alert.CreateInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.TenantID = authmw.TenantFromContext(r.Context())

	res, err := a.alerts.Create(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if res.Skipped {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("rampart.alert.id", id))

	al, err := a.alerts.Get(r.Context(), authmw.TenantFromContext(r.Context()), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

type claimRequest struct {
	AnalystID string `json:"analyst_id"`
}

func (a *API) handleClaimAlert(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}

	al, err := a.alerts.Claim(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"), req.AnalystID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

func (a *API) handleEscalateAlert(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}

	al, incidentID, err := a.alerts.Escalate(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"), req.AnalystID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alert":       al,
		"incident_id": incidentID,
	})
}

type resolveAlertRequest struct {
	AnalystID string        `json:"analyst_id"`
	Outcome   alert.Outcome `json:"outcome"`
	Notes     string        `json:"notes"`
}

func (a *API) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req resolveAlertRequest
	if !decodeBody(w, r, &req) {
		return
	}

	al, err := a.alerts.Resolve(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"), req.AnalystID, req.Outcome, req.Notes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}
