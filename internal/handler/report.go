package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tubeclone/internal/model"
)

type reportRequest struct {
	ReasonID string `json:"reasonId"`
}

// ReportResponse wraps the stored report.
type ReportResponse struct {
	Message string        `json:"message"`
	Report  *model.Report `json:"report"`
}

// HandleReportReasons
//
// HTTP: GET /api/youtube/reports/reasons
func (h *YouTubeHandler) HandleReportReasons(w http.ResponseWriter, r *http.Request) {
	reasons, err := h.reports.Reasons(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reasons)
}

// HandleMyReports lists the caller's reports.
//
// HTTP: GET /api/youtube/reports/videos
func (h *YouTubeHandler) HandleMyReports(w http.ResponseWriter, r *http.Request) {
	id := h.caller(w, r)
	if id == nil {
		return
	}
	reports, err := h.reports.Reports(r.Context(), id.User.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleReportVideo files (or replaces) the caller's report on a video. The
// confirmation email is sent on a best-effort basis and never fails the
// request.
//
// HTTP: POST /api/youtube/reports/videos/{videoId}
// REQUEST BODY: {"reasonId": "spam"}
func (h *YouTubeHandler) HandleReportVideo(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := h.caller(w, r)
	if id == nil {
		return
	}

	report, err := h.reports.ReportVideo(r.Context(), id.User, chi.URLParam(r, "videoId"), req.ReasonID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ReportResponse{Message: "Video reported successfully", Report: report})
}
