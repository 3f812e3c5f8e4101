package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/repository"
	"edugame/internal/service"
	"edugame/internal/validation"
)

// AdminHandler handles admin-only account and database routes
type AdminHandler struct {
	backupService *service.BackupService
	userRepo      *repository.UserRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(backupService *service.BackupService, userRepo *repository.UserRepository) *AdminHandler {
	return &AdminHandler{
		backupService: backupService,
		userRepo:      userRepo,
	}
}

// ListUsers returns every account
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepo.GetAllUsers(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ExportDatabase streams a full backup as a JSON download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	timestamp := time.Now().UTC().Format("20060102_150405")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=edugame_backup_%s.json", timestamp))

	if _, err := h.backupService.Export(r.Context(), w); err != nil {
		respondWithError(w, r, err)
		return
	}

	LoggerFromContext(r.Context()).WithField("admin", GetUserFromContext(r.Context()).Email).Info("database exported")
}

// ImportDatabase restores a backup from the request body. With ?clear=true
// all existing data is deleted first.
func (h *AdminHandler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	clearData := false
	if raw := r.URL.Query().Get("clear"); raw != "" {
		var err error
		if clearData, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, r, validation.Errors{"clear": "must be true or false"})
			return
		}
	}

	log := LoggerFromContext(r.Context()).WithFields(logrus.Fields{
		"admin": GetUserFromContext(r.Context()).Email,
		"clear": clearData,
	})

	if clearData {
		log.Warn("clearing database before import")
		if err := h.backupService.Clear(r.Context()); err != nil {
			respondWithError(w, r, err)
			return
		}
	}

	summary, err := h.backupService.Import(r.Context(), http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		log.WithError(err).Error("database import failed")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	log.Info("database imported")
	writeJSON(w, http.StatusOK, summary)
}
