package api

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/rampart/internal/authmw"
)

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("rampart.incident.id", id))

	inc, err := a.incidents.Get(r.Context(), authmw.TenantFromContext(r.Context()), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (a *API) handleStartIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := a.incidents.StartWork(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type resolveIncidentRequest struct {
	Summary string `json:"summary"`
}

func (a *API) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	var req resolveIncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inc, err := a.incidents.Resolve(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"), req.Summary)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type dismissIncidentRequest struct {
	Justification string `json:"justification"`
}

func (a *API) handleDismissIncident(w http.ResponseWriter, r *http.Request) {
	var req dismissIncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inc, err := a.incidents.Dismiss(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"), req.Justification)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (a *API) handleIncidentSLA(w http.ResponseWriter, r *http.Request) {
	st, err := a.incidents.SLA(r.Context(), authmw.TenantFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
