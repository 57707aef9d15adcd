package charting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/clinic/internal/platform/db"
)

// JSONB columns (segments, vitals, histories, xrays) are encoded and decoded
// by pgx straight from the typed structs.

// =========== Tooth Condition Repository ===========

type toothRepoPG struct{ pool *pgxpool.Pool }

func NewToothConditionRepoPG(pool *pgxpool.Pool) ToothConditionRepository {
	return &toothRepoPG{pool: pool}
}

func (r *toothRepoPG) Upsert(ctx context.Context, tc *ToothCondition) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tooth_condition (id, patient_id, year, tooth_number, condition, segments, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id, year, tooth_number) DO UPDATE SET
			condition = EXCLUDED.condition, segments = EXCLUDED.segments,
			notes = EXCLUDED.notes, updated_at = NOW()
		RETURNING id, updated_at`,
		uuid.New(), tc.PatientID, tc.Year, tc.ToothNumber, tc.Condition, tc.Segments, tc.Notes,
	).Scan(&tc.ID, &tc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert tooth condition: %w", err)
	}
	return nil
}

func (r *toothRepoPG) ListByPatientYear(ctx context.Context, patientID uuid.UUID, year int) ([]*ToothCondition, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, year, tooth_number, condition, segments, notes, updated_at
		FROM tooth_condition WHERE patient_id = $1 AND year = $2
		ORDER BY tooth_number`, patientID, year)
	if err != nil {
		return nil, fmt.Errorf("list tooth conditions: %w", err)
	}
	defer rows.Close()

	items := []*ToothCondition{}
	for rows.Next() {
		var tc ToothCondition
		if err := rows.Scan(&tc.ID, &tc.PatientID, &tc.Year, &tc.ToothNumber, &tc.Condition,
			&tc.Segments, &tc.Notes, &tc.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &tc)
	}
	return items, rows.Err()
}

// =========== Timeline Repository ===========

type timelineRepoPG struct{ pool *pgxpool.Pool }

func NewTimelineRepoPG(pool *pgxpool.Pool) TimelineRepository { return &timelineRepoPG{pool: pool} }

func (r *timelineRepoPG) Create(ctx context.Context, e *TreatmentEntry) error {
	e.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO treatment_entry (id, patient_id, year, treatment_date, tooth_number, procedure, dentist_id, notes)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8)
		RETURNING created_at`,
		e.ID, e.PatientID, e.Year, e.Date, e.ToothNumber, e.Procedure, e.DentistID, e.Notes,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert treatment entry: %w", err)
	}
	return nil
}

func (r *timelineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM treatment_entry WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete treatment entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *timelineRepoPG) ListByPatientYear(ctx context.Context, patientID uuid.UUID, year int) ([]*TreatmentEntry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, year, to_char(treatment_date, 'YYYY-MM-DD'), tooth_number,
			procedure, dentist_id, notes, created_at
		FROM treatment_entry WHERE patient_id = $1 AND year = $2
		ORDER BY treatment_date DESC, created_at DESC`, patientID, year)
	if err != nil {
		return nil, fmt.Errorf("list treatment entries: %w", err)
	}
	defer rows.Close()

	items := []*TreatmentEntry{}
	for rows.Next() {
		var e TreatmentEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Year, &e.Date, &e.ToothNumber,
			&e.Procedure, &e.DentistID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}

// =========== Medication Repository ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository { return &medicationRepoPG{pool: pool} }

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_medication (id, patient_id, year, name, dosage, frequency, start_date, end_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::date, $9)
		RETURNING created_at`,
		m.ID, m.PatientID, m.Year, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate, m.Notes,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

func (r *medicationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient_medication WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *medicationRepoPG) ListByPatientYear(ctx context.Context, patientID uuid.UUID, year int) ([]*Medication, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, patient_id, year, name, dosage, frequency,
			to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), notes, created_at
		FROM patient_medication WHERE patient_id = $1 AND year = $2
		ORDER BY created_at`, patientID, year)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	items := []*Medication{}
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Year, &m.Name, &m.Dosage, &m.Frequency,
			&m.StartDate, &m.EndDate, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// =========== Annual Record Repository ===========

type annualRecordRepoPG struct{ pool *pgxpool.Pool }

func NewAnnualRecordRepoPG(pool *pgxpool.Pool) AnnualRecordRepository {
	return &annualRecordRepoPG{pool: pool}
}

func scanAnnualRecord(row pgx.Row) (*AnnualRecord, error) {
	var rec AnnualRecord
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.Year, &rec.Vitals, &rec.DentalHistory,
		&rec.MedicalHistory, &rec.XRays, &rec.Notes, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *annualRecordRepoPG) Get(ctx context.Context, patientID uuid.UUID, year int) (*AnnualRecord, error) {
	rec, err := scanAnnualRecord(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, patient_id, year, vitals, dental_history, medical_history, xrays, notes, updated_at
		FROM annual_record WHERE patient_id = $1 AND year = $2`, patientID, year))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return rec, nil
}

func (r *annualRecordRepoPG) Upsert(ctx context.Context, rec *AnnualRecord) error {
	if rec.XRays == nil {
		rec.XRays = []XRay{}
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO annual_record (id, patient_id, year, vitals, dental_history, medical_history, xrays, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (patient_id, year) DO UPDATE SET
			vitals = EXCLUDED.vitals, dental_history = EXCLUDED.dental_history,
			medical_history = EXCLUDED.medical_history, xrays = EXCLUDED.xrays,
			notes = EXCLUDED.notes, updated_at = NOW()
		RETURNING id, updated_at`,
		uuid.New(), rec.PatientID, rec.Year, rec.Vitals, rec.DentalHistory, rec.MedicalHistory, rec.XRays, rec.Notes,
	).Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert annual record: %w", err)
	}
	return nil
}
