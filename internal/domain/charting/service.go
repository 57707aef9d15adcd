package charting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/clinic/internal/platform/httperr"
)

// Accepted chart years run from minChartYear to next year.
const (
	minChartYear = 1950
	maxYearAhead = 1
)

type Service struct {
	teeth    ToothConditionRepository
	timeline TimelineRepository
	meds     MedicationRepository
	records  AnnualRecordRepository
	now      func() time.Time
}

func NewService(teeth ToothConditionRepository, timeline TimelineRepository, meds MedicationRepository, records AnnualRecordRepository) *Service {
	return &Service{teeth: teeth, timeline: timeline, meds: meds, records: records, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// resolveYear returns the current year for 0 and rejects implausible values.
func (s *Service) resolveYear(year int) (int, error) {
	current := s.now().Year()
	if year == 0 {
		return current, nil
	}
	if year < minChartYear || year > current+maxYearAhead {
		return 0, httperr.Invalid("year %d is out of range", year)
	}
	return year, nil
}

func checkTooth(n int) error {
	if !ValidToothNumber(n) {
		return httperr.Invalid("tooth_number %d is not a valid FDI tooth number", n)
	}
	return nil
}

// -- Tooth conditions --

func (s *Service) UpsertToothCondition(ctx context.Context, tc *ToothCondition) error {
	if tc.PatientID == uuid.Nil {
		return httperr.Invalid("patient_id is required")
	}
	if err := checkTooth(tc.ToothNumber); err != nil {
		return err
	}
	year, err := s.resolveYear(tc.Year)
	if err != nil {
		return err
	}
	tc.Year = year
	tc.Condition = strings.TrimSpace(tc.Condition)
	return s.teeth.Upsert(ctx, tc)
}

func (s *Service) ToothChart(ctx context.Context, patientID uuid.UUID, year int) ([]*ToothCondition, error) {
	year, err := s.resolveYear(year)
	if err != nil {
		return nil, err
	}
	return s.teeth.ListByPatientYear(ctx, patientID, year)
}

// -- Treatment timeline --

func (s *Service) AddTreatment(ctx context.Context, e *TreatmentEntry) error {
	if e.PatientID == uuid.Nil {
		return httperr.Invalid("patient_id is required")
	}
	d, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return httperr.Invalid("date must be YYYY-MM-DD")
	}
	if e.ToothNumber != nil {
		if err := checkTooth(*e.ToothNumber); err != nil {
			return err
		}
	}
	// The entry files under the year it happened unless stated otherwise.
	if e.Year == 0 {
		e.Year = d.Year()
	}
	if e.Year, err = s.resolveYear(e.Year); err != nil {
		return err
	}
	e.Procedure = strings.TrimSpace(e.Procedure)
	if e.Procedure == "" {
		return httperr.Invalid("procedure is required")
	}
	return s.timeline.Create(ctx, e)
}

func (s *Service) Timeline(ctx context.Context, patientID uuid.UUID, year int) ([]*TreatmentEntry, error) {
	year, err := s.resolveYear(year)
	if err != nil {
		return nil, err
	}
	return s.timeline.ListByPatientYear(ctx, patientID, year)
}

func (s *Service) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	return s.timeline.Delete(ctx, id)
}

// -- Medications --

func (s *Service) AddMedication(ctx context.Context, m *Medication) error {
	if m.PatientID == uuid.Nil {
		return httperr.Invalid("patient_id is required")
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return httperr.Invalid("name is required")
	}
	if m.StartDate != nil && m.EndDate != nil && *m.EndDate < *m.StartDate {
		return httperr.Invalid("end_date is before start_date")
	}
	year, err := s.resolveYear(m.Year)
	if err != nil {
		return err
	}
	m.Year = year
	return s.meds.Create(ctx, m)
}

func (s *Service) Medications(ctx context.Context, patientID uuid.UUID, year int) ([]*Medication, error) {
	year, err := s.resolveYear(year)
	if err != nil {
		return nil, err
	}
	return s.meds.ListByPatientYear(ctx, patientID, year)
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	return s.meds.Delete(ctx, id)
}

// -- Annual records --

func (s *Service) AnnualRecord(ctx context.Context, patientID uuid.UUID, year int) (*AnnualRecord, error) {
	year, err := s.resolveYear(year)
	if err != nil {
		return nil, err
	}
	return s.records.Get(ctx, patientID, year)
}

func (s *Service) SaveAnnualRecord(ctx context.Context, rec *AnnualRecord) error {
	if rec.PatientID == uuid.Nil {
		return httperr.Invalid("patient_id is required")
	}
	year, err := s.resolveYear(rec.Year)
	if err != nil {
		return err
	}
	rec.Year = year
	for i, x := range rec.XRays {
		if x.ToothNumber != nil {
			if err := checkTooth(*x.ToothNumber); err != nil {
				return httperr.Invalid("xrays[%d]: tooth_number %d is not a valid FDI tooth number", i, *x.ToothNumber)
			}
		}
	}
	return s.records.Upsert(ctx, rec)
}
