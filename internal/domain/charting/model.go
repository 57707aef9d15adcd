package charting

import (
	"time"

	"github.com/google/uuid"
)

// ValidToothNumber reports whether n is an FDI tooth number: quadrants 1–4
// hold permanent teeth 1–8, quadrants 5–8 primary teeth 1–5.
func ValidToothNumber(n int) bool {
	q, t := n/10, n%10
	switch {
	case q >= 1 && q <= 4:
		return t >= 1 && t <= 8
	case q >= 5 && q <= 8:
		return t >= 1 && t <= 5
	}
	return false
}

// IsPrimaryTooth reports whether n is a deciduous (baby) tooth.
func IsPrimaryTooth(n int) bool {
	return ValidToothNumber(n) && n/10 >= 5
}

// Segments records a condition per tooth surface. Empty means sound.
type Segments struct {
	Occlusal string `json:"occlusal,omitempty" validate:"max=50"`
	Mesial   string `json:"mesial,omitempty" validate:"max=50"`
	Distal   string `json:"distal,omitempty" validate:"max=50"`
	Buccal   string `json:"buccal,omitempty" validate:"max=50"`
	Lingual  string `json:"lingual,omitempty" validate:"max=50"`
}

// ToothCondition is one cell of a patient's yearly chart, unique per
// (patient, year, tooth).
type ToothCondition struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id" validate:"required"`
	Year        int       `db:"year" json:"year"`
	ToothNumber int       `db:"tooth_number" json:"tooth_number" validate:"required"`
	Condition   string    `db:"condition" json:"condition" validate:"max=100"`
	Segments    Segments  `db:"segments" json:"segments"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TreatmentEntry is one line of the treatment timeline.
type TreatmentEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id" validate:"required"`
	Year        int        `db:"year" json:"year"`
	Date        string     `db:"treatment_date" json:"date" validate:"required,date"`
	ToothNumber *int       `db:"tooth_number" json:"tooth_number,omitempty"`
	Procedure   string     `db:"procedure" json:"procedure" validate:"required,max=500"`
	DentistID   *uuid.UUID `db:"dentist_id" json:"dentist_id,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Medication is a drug prescribed or reported for a patient in a year.
type Medication struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id" validate:"required"`
	Year      int       `db:"year" json:"year"`
	Name      string    `db:"name" json:"name" validate:"required,max=200"`
	Dosage    *string   `db:"dosage" json:"dosage,omitempty" validate:"omitempty,max=100"`
	Frequency *string   `db:"frequency" json:"frequency,omitempty" validate:"omitempty,max=100"`
	StartDate *string   `db:"start_date" json:"start_date,omitempty" validate:"omitempty,date"`
	EndDate   *string   `db:"end_date" json:"end_date,omitempty" validate:"omitempty,date"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Vitals struct {
	BloodPressure   string   `json:"blood_pressure,omitempty" validate:"omitempty,max=20"`
	PulseRate       *int     `json:"pulse_rate,omitempty" validate:"omitempty,min=0,max=300"`
	RespiratoryRate *int     `json:"respiratory_rate,omitempty" validate:"omitempty,min=0,max=100"`
	TemperatureC    *float64 `json:"temperature_c,omitempty" validate:"omitempty,min=25,max=45"`
	WeightKg        *float64 `json:"weight_kg,omitempty" validate:"omitempty,min=0,max=500"`
	HeightCm        *float64 `json:"height_cm,omitempty" validate:"omitempty,min=0,max=300"`
}

type DentalHistory struct {
	PreviousDentist string   `json:"previous_dentist,omitempty"`
	LastVisit       string   `json:"last_visit,omitempty" validate:"omitempty,date"`
	ChiefComplaint  string   `json:"chief_complaint,omitempty"`
	Habits          []string `json:"habits,omitempty"`
}

type MedicalHistory struct {
	Physician        string   `json:"physician,omitempty"`
	Conditions       []string `json:"conditions,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	BleedingDisorder bool     `json:"bleeding_disorder"`
	Pregnant         *bool    `json:"pregnant,omitempty"`
	Smoker           bool     `json:"smoker"`
}

// XRay references an image held outside this service.
type XRay struct {
	Date        string `json:"date" validate:"required,date"`
	Kind        string `json:"kind" validate:"required,oneof=periapical bitewing panoramic occlusal cephalometric cbct"`
	ToothNumber *int   `json:"tooth_number,omitempty"`
	Reference   string `json:"reference" validate:"required,max=500"`
	Findings    string `json:"findings,omitempty"`
}

// AnnualRecord bundles a patient's vitals, histories and imaging for a year.
type AnnualRecord struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	PatientID      uuid.UUID      `db:"patient_id" json:"patient_id" validate:"required"`
	Year           int            `db:"year" json:"year"` // 0 is the current year
	Vitals         Vitals         `db:"vitals" json:"vitals"`
	DentalHistory  DentalHistory  `db:"dental_history" json:"dental_history"`
	MedicalHistory MedicalHistory `db:"medical_history" json:"medical_history"`
	XRays          []XRay         `db:"xrays" json:"xrays" validate:"dive"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
