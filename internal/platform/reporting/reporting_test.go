package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeSource struct {
	rows  map[string][]map[string]interface{}
	err   error
	calls []time.Time
}

func (f *fakeSource) Evaluate(_ context.Context, m *MeasureDefinition, args ...interface{}) ([]map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	if from, ok := args[0].(time.Time); ok {
		f.calls = append(f.calls, from)
	}
	if rows, ok := f.rows[m.ID]; ok {
		return rows, nil
	}
	return []map[string]interface{}{}, nil
}

var manila = time.FixedZone("UTC+8", 8*3600)

func newTestService(src Source) *Service {
	svc := NewService(src, 5)
	svc.SetClock(manila, func() time.Time { return time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC) })
	return svc
}

func sampleSource() *fakeSource {
	return &fakeSource{rows: map[string][]map[string]interface{}{
		MeasureAppointmentsByStatus: {
			{"status": "Scheduled", "total": int64(4)},
			{"status": "Done", "total": int64(2)},
			{"status": "Cancelled", "total": int64(1)},
		},
		MeasureDentistLoad: {
			{"dentist_id": "d-1", "dentist_name": "Dr. Reyes", "booked": int64(5)},
			{"dentist_id": "d-2", "dentist_name": "Dr. Tan", "booked": int64(1)},
		},
		MeasureWalkIns: {{"total": int64(3)}},
		MeasureQueueByStatus: {
			{"status": "Waiting", "total": int64(2)},
			{"status": "On Chair", "total": int64(1)},
		},
		MeasureNewPatients: {{"total": int64(2)}},
	}}
}

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		MeasureAppointmentsByStatus,
		MeasureDentistLoad,
		MeasureWalkIns,
		MeasureQueueByStatus,
		MeasureNewPatients,
	}
	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}
	for i, expectedID := range expectedIDs {
		if PredefinedMeasures[i].ID != expectedID {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, expectedID, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" || m.Name == "" || m.Description == "" {
			t.Errorf("measure %s is incomplete", m.ID)
		}
		if len(m.Parameters) != 1 || m.Parameters[0] != "date" {
			t.Errorf("measure %s should take the date parameter", m.ID)
		}
	}
}

func TestFindMeasure(t *testing.T) {
	if m := FindMeasure(MeasureWalkIns); m == nil || m.Name != "Walk-ins" {
		t.Errorf("unexpected measure %+v", m)
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestService_Daily(t *testing.T) {
	svc := newTestService(sampleSource())

	report, err := svc.Daily(context.Background(), "2026-03-16")
	if err != nil {
		t.Fatal(err)
	}
	if report.Date != "2026-03-16" {
		t.Errorf("unexpected date %s", report.Date)
	}
	if report.TotalAppointments != 7 || report.AppointmentsByStatus["Done"] != 2 {
		t.Errorf("unexpected appointment counts %+v", report.AppointmentsByStatus)
	}
	if report.WalkIns != 3 || report.NewPatients != 2 {
		t.Errorf("walk-ins=%d new patients=%d", report.WalkIns, report.NewPatients)
	}
	if report.QueueByStatus["On Chair"] != 1 {
		t.Errorf("unexpected queue counts %+v", report.QueueByStatus)
	}
	if len(report.Dentists) != 2 {
		t.Fatalf("expected 2 dentists, got %d", len(report.Dentists))
	}
	if !report.Dentists[0].IsFull || report.Dentists[0].Limit != 5 {
		t.Errorf("Dr. Reyes at 5/5 should be full: %+v", report.Dentists[0])
	}
	if report.Dentists[1].IsFull {
		t.Errorf("Dr. Tan at 1/5 should not be full")
	}
}

func TestService_Daily_DefaultsToClinicToday(t *testing.T) {
	src := sampleSource()
	svc := newTestService(src)

	// 01:00 UTC is 09:00 on the same date in the clinic.
	report, err := svc.Daily(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if report.Date != "2026-03-16" {
		t.Errorf("expected clinic-local date, got %s", report.Date)
	}
	want := time.Date(2026, 3, 16, 0, 0, 0, 0, manila)
	for _, from := range src.calls {
		if !from.Equal(want) {
			t.Errorf("expected window from %v, got %v", want, from)
		}
	}
}

func TestService_Daily_Empty(t *testing.T) {
	svc := newTestService(&fakeSource{})
	report, err := svc.Daily(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalAppointments != 0 || report.Dentists == nil || len(report.AppointmentsByStatus) != 0 {
		t.Errorf("unexpected empty report %+v", report)
	}
}

func TestService_Daily_BadDate(t *testing.T) {
	svc := newTestService(sampleSource())
	if _, err := svc.Daily(context.Background(), "16/03/2026"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestHandler_Daily(t *testing.T) {
	h := NewHandler(newTestService(sampleSource()))
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/reports?date=2026-03-16", nil), rec)
	if err := h.Daily(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report DailyReport
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.WalkIns != 3 || len(report.Dentists) != 2 {
		t.Errorf("unexpected report %+v", report)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/reports?date=yesterday", nil), httptest.NewRecorder())
	err := h.Daily(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Daily_SourceFailure(t *testing.T) {
	h := NewHandler(newTestService(&fakeSource{err: errors.New("relation \"appointment\" does not exist")}))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil), httptest.NewRecorder())
	err := h.Daily(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}

func TestHandler_EvaluateMeasure(t *testing.T) {
	h := NewHandler(newTestService(sampleSource()))
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2026-03-16", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(MeasureWalkIns)
	if err := h.EvaluateMeasure(c); err != nil {
		t.Fatal(err)
	}
	var report MeasureReport
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.MeasureID != MeasureWalkIns || len(report.Results) != 1 || report.Parameters["date"] != "2026-03-16" {
		t.Errorf("unexpected measure report %+v", report)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	err := h.EvaluateMeasure(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListMeasures(t *testing.T) {
	h := NewHandler(newTestService(sampleSource()))
	e := echo.New()
	rec := httptest.NewRecorder()
	if err := h.ListMeasures(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatal(err)
	}
	var defs []MeasureDefinition
	json.Unmarshal(rec.Body.Bytes(), &defs)
	if len(defs) != len(PredefinedMeasures) {
		t.Errorf("expected %d measures, got %d", len(PredefinedMeasures), len(defs))
	}
}
