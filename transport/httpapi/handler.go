// Package httpapi exposes the conflict engine's operational surface over
// HTTP: the detection entry point for the sync pipeline and the review
// operations (list, inspect, resolve, ignore) for pending conflicts.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
	"github.com/c0deZ3R0/go-conflict-kit/logging"
)

// Handler serves the conflict engine's HTTP endpoints.
type Handler struct {
	detector *conflictkit.Detector
	workflow *conflictkit.Workflow
	store    conflictkit.ConflictStore
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler wires the engine components into an HTTP handler.
func NewHandler(detector *conflictkit.Detector, workflow *conflictkit.Workflow, store conflictkit.ConflictStore) *Handler {
	return &Handler{
		detector: detector,
		workflow: workflow,
		store:    store,
		validate: validator.New(),
		logger:   logging.WithComponent(logging.Component("httpapi")),
	}
}

// Router returns the configured mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/conflicts/detect", h.Detect).Methods(http.MethodPost)
	v1.HandleFunc("/conflicts", h.List).Methods(http.MethodGet)
	v1.HandleFunc("/conflicts/{id}", h.Get).Methods(http.MethodGet)
	v1.HandleFunc("/conflicts/{id}/resolve", h.Resolve).Methods(http.MethodPost)
	v1.HandleFunc("/conflicts/{id}/ignore", h.Ignore).Methods(http.MethodPost)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	return r
}

type detectResponse struct {
	Conflict *conflictkit.Conflict `json:"conflict"`
	Created  bool                  `json:"created"`
}

// Detect is the detection boundary: the sync pipeline posts both sides'
// records along with conflict type and severity. A suppressed duplicate
// returns 200 with the existing record; a new conflict returns 201.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	var in conflictkit.DetectionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	c, created, err := h.detector.CreateConflict(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, detectResponse{Conflict: c, Created: created})
}

// List returns the pending conflicts for a domain.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain query parameter is required")
		return
	}

	conflicts, err := h.store.ListPending(r.Context(), domain)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if conflicts == nil {
		conflicts = []*conflictkit.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

// Get returns one conflict, pending or terminal (terminal records are
// read-only history).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain query parameter is required")
		return
	}

	c, err := h.store.Get(r.Context(), domain, mux.Vars(r)["id"])
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type resolveRequest struct {
	Domain       string                 `json:"domain" validate:"required"`
	Choice       string                 `json:"choice" validate:"required,oneof=use_A use_B merge"`
	MergedFields map[string]interface{} `json:"merged_fields,omitempty"`
	ActorID      string                 `json:"actor_id" validate:"required"`
	Notes        string                 `json:"notes,omitempty"`
}

// Resolve finalizes a pending conflict with a manual decision.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.store.Get(r.Context(), req.Domain, mux.Vars(r)["id"])
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	res := conflictkit.Resolution{Choice: req.Choice, MergedFields: req.MergedFields}
	if err := h.workflow.Resolve(r.Context(), c, res, req.ActorID, req.Notes); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type ignoreRequest struct {
	Domain  string `json:"domain" validate:"required"`
	ActorID string `json:"actor_id" validate:"required"`
	Notes   string `json:"notes,omitempty"`
}

// Ignore finalizes a pending conflict without picking a value.
func (h *Handler) Ignore(w http.ResponseWriter, r *http.Request) {
	var req ignoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.store.Get(r.Context(), req.Domain, mux.Vars(r)["id"])
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	if err := h.workflow.Ignore(r.Context(), c, req.ActorID, req.Notes); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps engine error kinds onto HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conflictkit.ErrConflictNotFound):
		writeError(w, http.StatusNotFound, "conflict not found")
	case conflictErrors.IsMissingIdentifier(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case conflictErrors.IsAlreadyFinalized(err):
		writeError(w, http.StatusConflict, err.Error())
	case conflictErrors.IsKind(err, conflictErrors.KindValidationFailure):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.LogError(r.Context(), err, "request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
