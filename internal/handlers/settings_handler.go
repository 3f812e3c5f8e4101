package handlers

import (
	"io"
	"net/http"

	"edugame/internal/models"
	"edugame/internal/service"
	"edugame/internal/validation"
)

// SettingsHandler serves the caller's own app settings
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.Get(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.AppSettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, r, err)
		return
	}

	settings, err := h.settingsService.Update(r.Context(), GetUserFromContext(r.Context()).ID, patch)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.Reset(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Export downloads the settings as a JSON file
func (h *SettingsHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.settingsService.Export(r.Context(), GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=edugame_settings.json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import replaces the settings with an exported document
func (h *SettingsHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, r, validation.Errors{"settings": "could not be read"})
		return
	}

	settings, err := h.settingsService.Import(r.Context(), GetUserFromContext(r.Context()).ID, data)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// ClearData deletes everything the app keeps for the caller, settings included
func (h *SettingsHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.settingsService.ClearAllData(r.Context(), GetUserFromContext(r.Context()).ID); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SettingsHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsService.Options())
}
