package charting

import (
	"context"

	"github.com/google/uuid"
)

type ToothConditionRepository interface {
	// Upsert inserts or replaces the cell for (patient, year, tooth).
	Upsert(ctx context.Context, tc *ToothCondition) error
	ListByPatientYear(ctx context.Context, patientID uuid.UUID, year int) ([]*ToothCondition, error)
}

type TimelineRepository interface {
	Create(ctx context.Context, e *TreatmentEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatientYear(ctx context.Context, patientID uuid.UUID, year int) ([]*TreatmentEntry, error)
}

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatientYear(ctx context.Context, patientID uuid.UUID, year int) ([]*Medication, error)
}

type AnnualRecordRepository interface {
	Get(ctx context.Context, patientID uuid.UUID, year int) (*AnnualRecord, error)
	Upsert(ctx context.Context, r *AnnualRecord) error
}
