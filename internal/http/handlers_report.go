package http

import (
	"net/http"
	"strconv"

	"fintrack/internal/log"
)

type periodResponse struct {
	Year             int    `json:"year"`
	Month            int    `json:"month"`
	MonthName        string `json:"month_name"`
	DisplayName      string `json:"display_name"`
	TransactionCount int    `json:"transaction_count"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request, userID int64) {
	periods, err := s.reports.Periods(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err, "Failed to load reports")
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, periodResponse{
			Year:             p.Year,
			Month:            p.Month,
			MonthName:        p.MonthName(),
			DisplayName:      p.Label(),
			TransactionCount: p.TransactionCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := parsePeriod(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to load report")
		return
	}
	data, err := s.reports.Report(r.Context(), userID, p)
	if err != nil {
		s.writeError(w, r, err, "Failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleMonthlyReportPDF(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := parsePeriod(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to generate PDF")
		return
	}
	doc, err := s.reports.PDF(r.Context(), userID, p)
	if err != nil {
		s.writeError(w, r, err, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write PDF response", log.FieldError, err)
	}
}

func (s *Server) handleSendReport(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := parsePeriod(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to send report")
		return
	}
	if err := s.reports.Send(r.Context(), userID, p); err != nil {
		s.writeError(w, r, err, "Failed to send report")
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Monthly report sent on request",
		log.FieldUserID, userID,
		log.FieldPeriod, p.String())
	writeJSON(w, http.StatusOK, sendResponse{Success: true, Message: "Report sent successfully"})
}
