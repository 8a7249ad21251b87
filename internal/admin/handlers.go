// Package admin provides HTTP handlers for the router administration API.
// Routes expose API key management plus read-only dumps of the Config
// Snapshot, Provider Health Store, Circuit Breaker Manager, and Ledger.
// All admin routes are protected by bearer-token authentication via AuthMiddleware.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// SnapshotView exposes the minimal Config Snapshot read needed by the admin API.
type SnapshotView interface {
	Load(configID string) (interface{}, error)
}

// HealthView exposes a read-only dump of the Provider Health Store.
type HealthView interface {
	Dump() []HealthRecordView
}

// HealthRecordView is the admin-facing projection of one health.Record.
type HealthRecordView struct {
	Provider            string `json:"provider"`
	Region               string `json:"region"`
	Status               string `json:"status"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// BreakerView exposes a read-only dump of circuit breaker state per key.
type BreakerView interface {
	Dump() []HealthRecordView
}

// LedgerView exposes the recent Ledger Entries for operator inspection.
// An empty familyID returns entries across every Family; a non-empty one
// restricts the result to that Family.
type LedgerView interface {
	Recent(limit int, familyID string) ([]LedgerEntryView, error)
}

// LedgerEntryView is the admin-facing projection of one ledger.Entry.
type LedgerEntryView struct {
	FamilyID  string `json:"family_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Cost      float64 `json:"cost"`
	Timestamp string `json:"timestamp"`
}

// Handlers holds dependencies for admin HTTP handlers.
type Handlers struct {
	Keys          Store
	ConfigID      string
	Snapshots     SnapshotView
	Health        HealthView
	Breakers      BreakerView
	Ledger        LedgerView
}

// Routes returns a chi.Router with all admin endpoints mounted.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeReadOnly, ScopeAdmin))
		r.Get("/keys", h.listKeys)
		r.Get("/keys/{id}", h.getKey)
		r.Get("/config", h.getConfig)
		r.Get("/health", h.healthCheck)
		r.Get("/breakers", h.breakerState)
		r.With(RequireFamilyAccess).Get("/ledger", h.ledgerRecent)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeAdmin))
		r.Post("/keys", h.createKey)
		r.Put("/keys/{id}", h.updateKey)
		r.Delete("/keys/{id}", h.deleteKey)
		r.Post("/keys/{id}/revoke", h.revokeKey)
		r.Post("/keys/{id}/rotate", h.rotateKey)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) listKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Keys.List())
}

func (h *Handlers) getKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key, ok := h.Keys.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *Handlers) createKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string   `json:"name"`
		Scopes   []string `json:"scopes"`
		FamilyID string   `json:"family_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := h.Keys.Create(body.Name, body.Scopes, nil, body.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *Handlers) updateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Name   string   `json:"name"`
		Scopes []string `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := h.Keys.Update(id, body.Name, body.Scopes)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *Handlers) deleteKey(w http.ResponseWriter, r *http.Request) {
	if err := h.Keys.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) revokeKey(w http.ResponseWriter, r *http.Request) {
	if err := h.Keys.Revoke(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) rotateKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.Keys.RotateKey(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *Handlers) getConfig(w http.ResponseWriter, _ *http.Request) {
	if h.Snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}
	snap, err := h.Snapshots.Load(h.ConfigID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if h.Health == nil {
		writeJSON(w, http.StatusOK, []HealthRecordView{})
		return
	}
	writeJSON(w, http.StatusOK, h.Health.Dump())
}

func (h *Handlers) breakerState(w http.ResponseWriter, _ *http.Request) {
	if h.Breakers == nil {
		writeJSON(w, http.StatusOK, []HealthRecordView{})
		return
	}
	writeJSON(w, http.StatusOK, h.Breakers.Dump())
}

// ledgerRecent returns the most recent Ledger Entries. A family-scoped key
// is always restricted to its own Family, whether or not ?family_id is
// given explicitly; RequireFamilyAccess has already rejected any request
// asking for a different one.
func (h *Handlers) ledgerRecent(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		writeJSON(w, http.StatusOK, []LedgerEntryView{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	familyID := r.URL.Query().Get("family_id")
	if apiKey, ok := APIKeyFromContext(r.Context()); ok && apiKey.FamilyID != "" {
		familyID = apiKey.FamilyID
	}
	entries, err := h.Ledger.Recent(limit, familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
