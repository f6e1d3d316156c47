package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const maxSettingsBody = 1 << 10

type settingsResponse struct {
	EmailNotifications bool `json:"email_notifications"`
}

// settingsRequest uses a pointer so a missing field can be told apart from false.
type settingsRequest struct {
	EmailNotifications *bool `json:"email_notifications"`
}

type updateSettingsResponse struct {
	Success            bool `json:"success"`
	EmailNotifications bool `json:"email_notifications"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, userID int64) {
	u, err := s.reports.User(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{EmailNotifications: u.EmailNotifications})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, userID int64) {
	var req settingsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EmailNotifications == nil {
		writeJSONError(w, http.StatusBadRequest, "email_notifications is required")
		return
	}

	enabled := *req.EmailNotifications
	if err := s.settings.SetEmailNotifications(r.Context(), userID, enabled); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		}
		s.writeError(w, r, err, "Failed to update settings")
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Email notifications updated",
		log.FieldUserID, userID,
		"enabled", enabled)
	writeJSON(w, http.StatusOK, updateSettingsResponse{Success: true, EmailNotifications: enabled})
}
