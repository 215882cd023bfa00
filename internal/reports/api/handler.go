package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/auth"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/config"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/kafka"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/logger"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports/progress"
)

// Handler serves the report HTTP endpoints.
type Handler struct {
	Registry *reports.Registry
	Progress progress.Sink
	Producer *kafka.Producer
	Topics   config.TopicConfig
	Logger   *logger.Logger
}

// NewHandler creates a new report API handler. producer may be nil when
// Kafka is disabled.
func NewHandler(registry *reports.Registry, sink progress.Sink, producer *kafka.Producer, topics config.TopicConfig, log *logger.Logger) *Handler {
	return &Handler{
		Registry: registry,
		Progress: sink,
		Producer: producer,
		Topics:   topics,
		Logger:   log,
	}
}

// RegisterRoutes registers the report routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", h.ListReports)
		r.Get("/runs/{runId}/progress", h.GetProgress)
		r.Get("/{identifier}/form", h.GetFormFields)
		r.Post("/{identifier}", h.RunReport)
	})
}

// ListReports returns the registered report types.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	type reportInfo struct {
		Identifier  string `json:"identifier"`
		VerboseName string `json:"verbose_name"`
	}
	var infos []reportInfo
	for _, e := range h.Registry.List() {
		infos = append(infos, reportInfo{Identifier: e.Identifier(), VerboseName: e.VerboseName()})
	}
	sendJSONResponse(w, http.StatusOK, okEnvelope("reports listed", infos))
}

// GetFormFields returns the configuration surface of one report type for
// the organizer given in the query string.
func (h *Handler) GetFormFields(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	exp, ok := h.Registry.Get(identifier)
	if !ok {
		sendJSONResponse(w, http.StatusNotFound, errEnvelope("unknown report", identifier))
		return
	}

	organizer := r.URL.Query().Get("organizer")
	if organizer == "" {
		sendJSONResponse(w, http.StatusBadRequest, errEnvelope("missing parameter", "organizer is required"))
		return
	}
	var eventIDs []string
	if raw := r.URL.Query().Get("event_ids"); raw != "" {
		eventIDs = strings.Split(raw, ",")
	}

	fields, err := exp.FormFields(r.Context(), organizer, eventIDs)
	if err != nil {
		h.Logger.Error("REPORT", fmt.Sprintf("Failed to load form fields for %s: %v", identifier, err))
		sendJSONResponse(w, http.StatusInternalServerError, errEnvelope("failed to load form fields", err.Error()))
		return
	}
	sendJSONResponse(w, http.StatusOK, okEnvelope("form fields", fields))
}

// RunReport executes a report synchronously and responds with the workbook
// as an attachment. Progress is published under a fresh run ID, returned in
// the X-Report-Run-Id header.
func (h *Handler) RunReport(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	exp, ok := h.Registry.Get(identifier)
	if !ok {
		sendJSONResponse(w, http.StatusNotFound, errEnvelope("unknown report", identifier))
		return
	}

	var req reports.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, errEnvelope("malformed request body", err.Error()))
		return
	}
	if req.Organizer == "" {
		sendJSONResponse(w, http.StatusBadRequest, errEnvelope("missing parameter", "organizer is required"))
		return
	}

	runID := uuid.New().String()
	if subject := h.requestSubject(r); subject != "" {
		h.Logger.LogReport(identifier, runID, fmt.Sprintf("Requested by %s", subject))
	}
	h.Logger.LogReport(identifier, runID, "Run started")
	started := time.Now()

	artifact, err := h.runReport(r, exp, runID, req)
	if err != nil {
		h.Logger.Error("REPORT", fmt.Sprintf("[%s] %s - Run failed: %v", identifier, runID, err))
		h.publishLifecycleEvent(h.Topics.ReportFailed, kafka.ReportEvent{
			RunID:      runID,
			Identifier: identifier,
			Organizer:  req.Organizer,
			Error:      err.Error(),
			Duration:   time.Since(started).String(),
			FinishedAt: time.Now(),
		})
		if errors.Is(err, reports.ErrValidation) {
			sendJSONResponse(w, http.StatusBadRequest, runErrEnvelope(runID, "invalid report input", err.Error()))
			return
		}
		sendJSONResponse(w, http.StatusInternalServerError, runErrEnvelope(runID, "report generation failed", err.Error()))
		return
	}

	h.Logger.LogReport(identifier, runID, fmt.Sprintf("Run finished in %s (%d bytes)", time.Since(started), len(artifact.Bytes)))
	h.publishLifecycleEvent(h.Topics.ReportCompleted, kafka.ReportEvent{
		RunID:      runID,
		Identifier: identifier,
		Organizer:  req.Organizer,
		Filename:   artifact.Filename,
		Duration:   time.Since(started).String(),
		FinishedAt: time.Now(),
	})

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("X-Report-Run-Id", runID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Bytes)
}

func (h *Handler) runReport(r *http.Request, exp reports.Exporter, runID string, req reports.RunRequest) (*exporter.Artifact, error) {
	ctx := r.Context()

	source, err := exp.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	artifact, err := exporter.RenderXLSX(ctx, source, func(pct float64) {
		if err := h.Progress.Set(ctx, runID, pct); err != nil {
			h.Logger.Warn("REPORT", fmt.Sprintf("Failed to record progress for run %s: %v", runID, err))
		}
	})
	if err != nil {
		return nil, err
	}

	if err := h.Progress.Set(ctx, runID, 100); err != nil {
		h.Logger.Warn("REPORT", fmt.Sprintf("Failed to record progress for run %s: %v", runID, err))
	}
	return artifact, nil
}

// GetProgress returns the recorded completion percentage of a run.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	pct, found, err := h.Progress.Get(r.Context(), runID)
	if err != nil {
		sendJSONResponse(w, http.StatusInternalServerError, errEnvelope("failed to read progress", err.Error()))
		return
	}
	if !found {
		sendJSONResponse(w, http.StatusNotFound, errEnvelope("unknown run", runID))
		return
	}
	sendJSONResponse(w, http.StatusOK, okEnvelope("progress", map[string]interface{}{
		"run_id":  runID,
		"percent": pct,
	}))
}

func (h *Handler) requestSubject(r *http.Request) string {
	if subject := auth.UserID(r.Context()); subject != "" {
		return subject
	}
	// Unauthenticated deployments still get best-effort audit attribution.
	subject, err := auth.RequestSubject(r)
	if err != nil {
		return ""
	}
	return subject
}

func (h *Handler) publishLifecycleEvent(topic string, event kafka.ReportEvent) {
	if h.Producer == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishReportEvent(publishCtx, topic, event); err != nil {
		h.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for run %s: %v", topic, event.RunID, err))
	} else {
		h.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("Run %s", event.RunID))
	}
}
