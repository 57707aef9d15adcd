package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// Get returns the saved calendar, or DefaultCalendar with IsDefault set.
	// A missing dentist is db.ErrNotFound.
	Get(ctx context.Context, dentistID uuid.UUID) (*Schedule, error)
	Upsert(ctx context.Context, s *Schedule) error
	// Forget drops anything held for a deleted dentist.
	Forget(ctx context.Context, dentistID uuid.UUID) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	// CountActive counts non-cancelled appointments of a dentist starting
	// in [from, to), ignoring exclude.
	CountActive(ctx context.Context, dentistID uuid.UUID, from, to time.Time, exclude uuid.UUID) (int, error)
	// LockDentistDay serializes writers of one dentist/day until the
	// surrounding transaction ends.
	LockDentistDay(ctx context.Context, dentistID uuid.UUID, day string) error
}

type QueueRepository interface {
	Create(ctx context.Context, q *QueueEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*QueueEntry, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*QueueEntry, error)
	// Update writes u's notes and dentist. Nil fields keep their stored value.
	Update(ctx context.Context, id uuid.UUID, u QueueUpdate) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListAdded returns entries added in [from, to), oldest first.
	ListAdded(ctx context.Context, from, to time.Time) ([]*QueueEntry, error)
	// ActiveForPatient returns the patient's latest non-terminal entry added
	// in [from, to).
	ActiveForPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time) (*QueueEntry, error)
}
