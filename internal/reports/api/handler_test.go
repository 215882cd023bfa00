package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/config"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/logger"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports"
)

// memorySink is an in-process progress.Sink for handler tests.
type memorySink struct {
	mu   sync.Mutex
	pcts map[string]float64
}

func newMemorySink() *memorySink {
	return &memorySink{pcts: map[string]float64{}}
}

func (s *memorySink) Set(ctx context.Context, runID string, pct float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcts[runID] = pct
	return nil
}

func (s *memorySink) Get(ctx context.Context, runID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pct, found := s.pcts[runID]
	return pct, found, nil
}

// stubSource is a minimal one-sheet report run.
type stubSource struct{}

func (stubSource) Filename() string {
	return "stub_2024-01-01_2024-01-07"
}

func (stubSource) Sheets() []exporter.Sheet {
	return []exporter.Sheet{{Key: "main", Label: "Main"}}
}

func (stubSource) SheetHints(key string) exporter.Hints {
	return exporter.Hints{}
}

func (stubSource) IterateSheet(ctx context.Context, key string, emit exporter.EmitFunc) error {
	if err := emit(exporter.Row{"Date", "Value"}); err != nil {
		return err
	}
	return emit(exporter.Row{"01/03/2024", int64(100)})
}

type fakeExporter struct {
	id         string
	prepareErr error
}

func (f *fakeExporter) Identifier() string {
	return f.id
}

func (f *fakeExporter) VerboseName() string {
	return "Fake report"
}

func (f *fakeExporter) FormFields(ctx context.Context, organizerID string, eventIDs []string) ([]reports.FormField, error) {
	return []reports.FormField{{Name: "date_from", Type: "date", Label: "Start date"}}, nil
}

func (f *fakeExporter) Prepare(ctx context.Context, req reports.RunRequest) (exporter.MultiSheetSource, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return stubSource{}, nil
}

func setupHandler(t *testing.T, exporters ...reports.Exporter) (*chi.Mux, *memorySink) {
	t.Helper()

	log := logger.NewLogger()
	t.Cleanup(log.Close)

	sink := newMemorySink()
	handler := NewHandler(reports.NewRegistry(exporters...), sink, nil, config.TopicConfig{}, log)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, sink
}

func TestListReports(t *testing.T) {
	router, _ := setupHandler(t, &fakeExporter{id: "capacity_utilization"}, &fakeExporter{id: "capacity_creation"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "capacity_utilization")
	assert.Contains(t, body, "capacity_creation")
}

func TestGetFormFields(t *testing.T) {
	router, _ := setupHandler(t, &fakeExporter{id: "capacity_utilization"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/capacity_utilization/form?organizer=org1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "date_from")
}

func TestGetFormFieldsRequiresOrganizer(t *testing.T) {
	router, _ := setupHandler(t, &fakeExporter{id: "capacity_utilization"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/capacity_utilization/form", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFormFieldsUnknownReport(t *testing.T) {
	router, _ := setupHandler(t, &fakeExporter{id: "capacity_utilization"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/nope/form?organizer=org1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunReportProducesWorkbook(t *testing.T) {
	router, sink := setupHandler(t, &fakeExporter{id: "capacity_utilization"})

	payload, err := json.Marshal(reports.RunRequest{Organizer: "org1"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/capacity_utilization", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exporter.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stub_2024-01-01_2024-01-07.xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())

	runID := rec.Header().Get("X-Report-Run-Id")
	require.NotEmpty(t, runID)
	pct, found, err := sink.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, float64(100), pct)
}

func TestRunReportRequiresOrganizer(t *testing.T) {
	router, _ := setupHandler(t, &fakeExporter{id: "capacity_utilization"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/capacity_utilization", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunReportValidationErrorIsBadRequest(t *testing.T) {
	failing := &fakeExporter{
		id:         "capacity_utilization",
		prepareErr: fmt.Errorf("%w: date_from: unparsable date", reports.ErrValidation),
	}
	router, _ := setupHandler(t, failing)

	payload, _ := json.Marshal(reports.RunRequest{Organizer: "org1", DateFrom: "junk"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/capacity_utilization", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunReportRuntimeFailureIsServerError(t *testing.T) {
	failing := &fakeExporter{
		id:         "capacity_utilization",
		prepareErr: fmt.Errorf("database gone"),
	}
	router, _ := setupHandler(t, failing)

	payload, _ := json.Marshal(reports.RunRequest{Organizer: "org1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/capacity_utilization", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Run-scoped failures carry the run ID so clients can correlate them
	// with the progress endpoint.
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.RunID)
	assert.Contains(t, resp.Error, "database gone")
}

func TestRunReportMalformedBody(t *testing.T) {
	router, _ := setupHandler(t, &fakeExporter{id: "capacity_utilization"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/capacity_utilization", bytes.NewReader([]byte(`{`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProgress(t *testing.T) {
	router, sink := setupHandler(t, &fakeExporter{id: "capacity_utilization"})
	require.NoError(t, sink.Set(context.Background(), "run1", 42.5))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/runs/run1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42.5")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/runs/unknown/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
