package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// withUser rejects requests without a valid positive user id.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(w, r, id)
	}
}

// parsePeriod reads the {year} and {month} path values.
func parsePeriod(r *http.Request) (core.Period, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return core.Period{}, core.ErrInvalidPeriod
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return core.Period{}, core.ErrInvalidPeriod
	}
	return core.NewPeriod(year, month)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps err to a status and a generic message. fallback is used
// for faults that have no dedicated message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg, errType := http.StatusInternalServerError, fallback, log.ErrorTypeInternal

	var (
		df *report.DeliveryFault
		rf *report.RenderFault
		da *report.DataAccessFault
	)
	switch {
	case errors.Is(err, core.ErrInvalidPeriod):
		status, msg, errType = http.StatusBadRequest, "Invalid period", log.ErrorTypeValidation
	case errors.Is(err, report.ErrUserNotFound):
		status, msg, errType = http.StatusNotFound, "User not found", log.ErrorTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		errType = log.ErrorTypeTimeout
	case errors.As(err, &df):
		msg, errType = "Failed to send email", log.ErrorTypeDelivery
	case errors.As(err, &rf):
		msg, errType = "Failed to generate PDF", log.ErrorTypeRender
	case errors.As(err, &da):
		errType = log.ErrorTypeDatabase
	}

	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, errType,
			log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, errType,
			log.FieldError, err)
	}
	writeJSONError(w, status, msg)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldPath, r.URL.Path,
		log.FieldUserID, r.Header.Get(HeaderUserID))
	writeJSONError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}
