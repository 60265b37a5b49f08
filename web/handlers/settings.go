package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/scrypster/clawscope/internal/settings"
)

const maxSettingsBody = 1 << 20

// StatusReporter describes where state lives.
type StatusReporter interface {
	Status(ctx context.Context) settings.Status
}

// SettingsHandlers serve /settings/config, /settings/save and /settings/status.
type SettingsHandlers struct {
	store  *settings.Store
	status StatusReporter
}

// NewSettingsHandlers creates the handlers.
func NewSettingsHandlers(store *settings.Store, status StatusReporter) *SettingsHandlers {
	return &SettingsHandlers{store: store, status: status}
}

// Config returns the stored settings object.
func (h *SettingsHandlers) Config(w http.ResponseWriter, r *http.Request) {
	raw, err := h.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// Save replaces the settings file with the request body.
func (h *SettingsHandlers) Save(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody+1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if len(body) > maxSettingsBody {
		respondError(w, http.StatusInternalServerError, errors.New("settings body too large"))
		return
	}
	if err := h.store.Save(body); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Status reports file locations and the last extraction marker.
func (h *SettingsHandlers) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.status.Status(r.Context()))
}

// StorePreferences adapts a settings store to PreferenceSource, reading the
// file on every call so saves take effect immediately.
type StorePreferences struct {
	Store *settings.Store
}

// SearchMode implements PreferenceSource.
func (p StorePreferences) SearchMode() string {
	prefs, _ := p.Store.Preferences()
	return prefs.SearchMode
}

// ExtractionMode implements PreferenceSource.
func (p StorePreferences) ExtractionMode() string {
	prefs, _ := p.Store.Preferences()
	return prefs.ExtractionMode
}
