package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/clinic/internal/domain/identity"
	"github.com/dentaldesk/clinic/internal/platform/db"
	"github.com/dentaldesk/clinic/internal/platform/events"
	"github.com/dentaldesk/clinic/internal/platform/httperr"
)

// DefaultDailyLimit is the per-dentist appointment cap when none is configured.
const DefaultDailyLimit = 5

// maxDayAppointments bounds single-day reads used for slots and conflicts.
const maxDayAppointments = 1000

var (
	ErrDailyLimitReached = fmt.Errorf("%w: daily appointment limit reached", httperr.ErrConflict)
	ErrInvalidStatus     = fmt.Errorf("%w: unknown status", httperr.ErrInvalid)
	ErrAlreadyQueued     = fmt.Errorf("%w: appointment is already in the queue", httperr.ErrConflict)
	ErrAppointmentClosed = fmt.Errorf("%w: appointment is already closed", httperr.ErrConflict)
)

// TxRunner runs fn in one database transaction. *db.Transactor satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PatientCreator registers a patient as part of a booking or walk-in.
type PatientCreator interface {
	CreatePatient(ctx context.Context, p *identity.Patient) error
}

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Service struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	queue        QueueRepository
	tx           TxRunner
	patients     PatientCreator
	publisher    events.Publisher
	logger       zerolog.Logger

	limit        int
	enforceLimit bool
	loc          *time.Location
	now          func() time.Time
}

func NewService(sched ScheduleRepository, appt AppointmentRepository, queue QueueRepository, tx TxRunner) *Service {
	if tx == nil {
		tx = noTx{}
	}
	return &Service{
		schedules:    sched,
		appointments: appt,
		queue:        queue,
		tx:           tx,
		publisher:    events.NoopPublisher{},
		logger:       zerolog.Nop(),
		limit:        DefaultDailyLimit,
		enforceLimit: true,
		loc:          time.Local,
		now:          time.Now,
	}
}

// SetPatientCreator enables bookings and walk-ins that carry a new patient.
func (s *Service) SetPatientCreator(p PatientCreator) { s.patients = p }

func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetLimit configures the daily per-dentist cap and whether writes enforce it.
func (s *Service) SetLimit(limit int, enforce bool) {
	if limit > 0 {
		s.limit = limit
	}
	s.enforceLimit = enforce
}

// SetClock sets the clinic calendar and the time source.
func (s *Service) SetClock(loc *time.Location, now func() time.Time) {
	if loc != nil {
		s.loc = loc
	}
	if now != nil {
		s.now = now
	}
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

// day resolves "YYYY-MM-DD" (or "" for today) to its bounds on the clinic
// calendar.
func (s *Service) day(date string) (time.Time, time.Time, error) {
	if strings.TrimSpace(date) == "" {
		from, to := DayBounds(s.today(), s.loc)
		return from, to, nil
	}
	d, err := ParseDate(date, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, httperr.Invalid("%s", err.Error())
	}
	from, to := DayBounds(d, s.loc)
	return from, to, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	evt := events.New(eventType, db.TenantFromContext(ctx), payload)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}

func invalidStatus(status string) error {
	return fmt.Errorf("%w %q", ErrInvalidStatus, status)
}

// -- Schedule --

func (s *Service) GetSchedule(ctx context.Context, dentistID uuid.UUID) (*Schedule, error) {
	return s.schedules.Get(ctx, dentistID)
}

// UpdateSchedule replaces a dentist's calendar. Intervals are stored as
// given; an inverted interval simply never blocks a slot.
func (s *Service) UpdateSchedule(ctx context.Context, sched *Schedule) error {
	cal := &sched.Calendar
	switch {
	case strings.EqualFold(strings.TrimSpace(cal.Status), ScheduleAvailable):
		cal.Status = ScheduleAvailable
	case strings.EqualFold(strings.TrimSpace(cal.Status), ScheduleBusy):
		cal.Status = ScheduleBusy
	case strings.EqualFold(strings.TrimSpace(cal.Status), ScheduleOff):
		cal.Status = ScheduleOff
	default:
		return httperr.Invalid("schedule status must be Available, Busy or Off")
	}
	for _, wd := range cal.WorkingDays {
		if wd < 0 || wd > 6 {
			return httperr.Invalid("working day %d out of range 0-6", wd)
		}
	}
	cal.WorkingDays = uniqueSorted(cal.WorkingDays)

	if err := s.schedules.Upsert(ctx, sched); err != nil {
		return err
	}
	s.publish(ctx, events.TypeScheduleUpdated, map[string]interface{}{
		"dentist_id": sched.DentistID,
		"status":     cal.Status,
	})
	return nil
}

func uniqueSorted(days []int) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// Slots returns the slot grid of a dentist for date ("" is today). The
// appointment excludeID, typically the one being edited, never books a slot.
// ForgetDentist drops the cached calendar of a deleted dentist so slot and
// limit lookups report it as missing straight away.
func (s *Service) ForgetDentist(ctx context.Context, dentistID uuid.UUID) {
	if err := s.schedules.Forget(ctx, dentistID); err != nil {
		s.logger.Warn().Err(err).Str("dentist_id", dentistID.String()).Msg("failed to drop cached calendar")
	}
}

func (s *Service) Slots(ctx context.Context, dentistID uuid.UUID, date string, excludeID uuid.UUID) ([]Slot, error) {
	from, to, err := s.day(date)
	if err != nil {
		return nil, err
	}
	sched, err := s.schedules.Get(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	appts, _, err := s.appointments.List(ctx, AppointmentFilter{DentistID: &dentistID, From: &from, To: &to}, maxDayAppointments, 0)
	if err != nil {
		return nil, err
	}
	return GenerateSlots(sched, from, appts, excludeID, s.now()), nil
}

// -- Appointment --

func (s *Service) prepareAppointment(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return httperr.Invalid("patient_id is required")
	}
	return normalizeAppointment(a)
}

func normalizeAppointment(a *Appointment) error {
	a.MinutesDuration = SlotMinutes
	a.Procedure = strings.TrimSpace(a.Procedure)
	if strings.TrimSpace(a.Status) == "" {
		a.Status = StatusScheduled
	}
	st := NormalizeStatus(a.Status)
	if st == "" {
		return invalidStatus(a.Status)
	}
	a.Status = st
	return nil
}

// checkDailyLimit rejects a write that would put the dentist over the daily
// cap. It must run inside a transaction so the advisory lock holds until
// the write commits.
func (s *Service) checkDailyLimit(ctx context.Context, a *Appointment) error {
	if !s.enforceLimit || a.DentistID == nil || a.StartTime == nil || isCancelled(a.Status) {
		return nil
	}
	from, to := DayBounds(*a.StartTime, s.loc)
	if err := s.appointments.LockDentistDay(ctx, *a.DentistID, LocalISODate(from)); err != nil {
		return err
	}
	n, err := s.appointments.CountActive(ctx, *a.DentistID, from, to, a.ID)
	if err != nil {
		return err
	}
	if n >= s.limit {
		return ErrDailyLimitReached
	}
	return nil
}

func (s *Service) createAppointmentTx(ctx context.Context, a *Appointment) error {
	if err := s.checkDailyLimit(ctx, a); err != nil {
		return err
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if err := s.prepareAppointment(a); err != nil {
		return err
	}
	if err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.createAppointmentTx(ctx, a)
	}); err != nil {
		return err
	}
	s.publish(ctx, events.TypeAppointmentBooked, a)
	return nil
}

// Book creates an appointment and, when req.Patient is set, the patient it
// belongs to. Either both are stored or neither is.
func (s *Service) Book(ctx context.Context, req *BookingRequest) (*Appointment, error) {
	a := &req.Appointment
	prepare := s.prepareAppointment
	if req.Patient != nil {
		if s.patients == nil {
			return nil, httperr.Invalid("new patients cannot be registered here")
		}
		prepare = normalizeAppointment
	}
	if err := prepare(a); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if req.Patient != nil {
			if err := s.patients.CreatePatient(ctx, req.Patient); err != nil {
				return err
			}
			a.PatientID = req.Patient.ID
		}
		return s.createAppointmentTx(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeAppointmentBooked, a)
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// ListAppointments filters by dentist, patient, status and date ("" for
// any day).
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter, date string, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" {
		st := NormalizeStatus(f.Status)
		if st == "" {
			return nil, 0, invalidStatus(f.Status)
		}
		f.Status = st
	}
	if date != "" {
		from, to, err := s.day(date)
		if err != nil {
			return nil, 0, err
		}
		f.From, f.To = &from, &to
	}
	return s.appointments.List(ctx, f, limit, offset)
}

// UpdateAppointment stores a, re-checking the daily cap when the dentist or
// day changes, and carries a status change over to a linked queue entry.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if err := s.prepareAppointment(a); err != nil {
		return err
	}
	var statusChanged bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		prev, err := s.appointments.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		statusChanged = prev.Status != a.Status
		if movesDay(prev, a, s.loc) || (isCancelled(prev.Status) && !isCancelled(a.Status)) {
			if err := s.checkDailyLimit(ctx, a); err != nil {
				return err
			}
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		if statusChanged {
			return s.syncQueueFromAppointment(ctx, a.ID, a.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if statusChanged {
		s.publish(ctx, events.TypeAppointmentStatusChanged, map[string]interface{}{
			"appointment_id": a.ID,
			"status":         a.Status,
		})
	}
	return nil
}

func movesDay(prev, next *Appointment, loc *time.Location) bool {
	if next.DentistID == nil || next.StartTime == nil {
		return false
	}
	if prev.DentistID == nil || *prev.DentistID != *next.DentistID || prev.StartTime == nil {
		return true
	}
	return LocalISODate(prev.StartTime.In(loc)) != LocalISODate(next.StartTime.In(loc))
}

func (s *Service) syncQueueFromAppointment(ctx context.Context, apptID uuid.UUID, status string) error {
	q, err := s.queue.GetByAppointment(ctx, apptID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.queue.UpdateStatus(ctx, q.ID, status)
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

// Conflicts lists double bookings on date ("" is today).
func (s *Service) Conflicts(ctx context.Context, date string) ([]ConflictMessage, error) {
	from, to, err := s.day(date)
	if err != nil {
		return nil, err
	}
	appts, _, err := s.appointments.List(ctx, AppointmentFilter{From: &from, To: &to}, maxDayAppointments, 0)
	if err != nil {
		return nil, err
	}

	dentists := map[uuid.UUID]string{}
	patients := map[uuid.UUID]string{}
	for _, a := range appts {
		if a.DentistID != nil && a.DentistName != "" {
			dentists[*a.DentistID] = a.DentistName
		}
		if a.PatientName != "" {
			patients[a.PatientID] = a.PatientName
		}
	}
	return FindConflicts(appts,
		func(id uuid.UUID) string { return dentists[id] },
		func(id uuid.UUID) string { return patients[id] },
	), nil
}

// CheckLimit reports how many non-cancelled appointments the dentist has on
// date ("" is today) against the daily cap. An unknown dentist is
// db.ErrNotFound.
func (s *Service) CheckLimit(ctx context.Context, dentistID uuid.UUID, date string) (*LimitStatus, error) {
	from, to, err := s.day(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.schedules.Get(ctx, dentistID); err != nil {
		return nil, err
	}
	n, err := s.appointments.CountActive(ctx, dentistID, from, to, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return &LimitStatus{
		DentistID: dentistID,
		Date:      LocalISODate(from),
		Count:     n,
		Limit:     s.limit,
		IsFull:    n >= s.limit,
	}, nil
}

// CheckIn puts a booked patient in today's queue and moves the appointment
// to Checked-In.
func (s *Service) CheckIn(ctx context.Context, apptID uuid.UUID) (*QueueEntry, error) {
	var entry *QueueEntry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, apptID)
		if err != nil {
			return err
		}
		if IsTerminal(a.Status) {
			return ErrAppointmentClosed
		}
		if _, err := s.queue.GetByAppointment(ctx, apptID); err == nil {
			return ErrAlreadyQueued
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		procedure := a.Procedure
		entry = &QueueEntry{
			PatientID:     a.PatientID,
			DentistID:     a.DentistID,
			AppointmentID: &a.ID,
			Source:        SourceAppointment,
			Status:        StatusCheckedIn,
			Procedure:     &procedure,
		}
		if err := s.queue.Create(ctx, entry); err != nil {
			return err
		}
		return s.appointments.UpdateStatus(ctx, a.ID, StatusCheckedIn)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeQueueStatusChanged, entry)
	return entry, nil
}

// -- Queue --

// AddWalkIn queues a patient without an appointment. A new patient in req is
// registered in the same transaction.
func (s *Service) AddWalkIn(ctx context.Context, req *WalkInRequest) (*QueueEntry, error) {
	status := StatusCheckedIn
	if strings.TrimSpace(req.Status) != "" {
		if status = NormalizeQueueStatus(req.Status); status == "" {
			return nil, invalidStatus(req.Status)
		}
	}
	if req.Patient == nil && (req.PatientID == nil || *req.PatientID == uuid.Nil) {
		return nil, httperr.Invalid("patient_id or patient is required")
	}
	if req.Patient != nil && s.patients == nil {
		return nil, httperr.Invalid("new patients cannot be registered here")
	}

	entry := &QueueEntry{
		DentistID: req.DentistID,
		Source:    SourceWalkIn,
		Status:    status,
		Procedure: req.Procedure,
		Notes:     req.Notes,
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if req.Patient != nil {
			if err := s.patients.CreatePatient(ctx, req.Patient); err != nil {
				return err
			}
			entry.PatientID = req.Patient.ID
		} else {
			entry.PatientID = *req.PatientID
		}
		return s.queue.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeQueueStatusChanged, entry)
	return entry, nil
}

func (s *Service) GetQueueEntry(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	return s.queue.GetByID(ctx, id)
}

// ListQueue returns the queue of date ("" is today) in arrival order.
func (s *Service) ListQueue(ctx context.Context, date string) ([]*QueueEntry, error) {
	from, to, err := s.day(date)
	if err != nil {
		return nil, err
	}
	return s.queue.ListAdded(ctx, from, to)
}

// QueueStatus returns the patient's open entry in today's queue, or
// db.ErrNotFound.
func (s *Service) QueueStatus(ctx context.Context, patientID uuid.UUID) (*QueueEntry, error) {
	from, to := DayBounds(s.today(), s.loc)
	return s.queue.ActiveForPatient(ctx, patientID, from, to)
}

// UpdateQueueStatus sets the entry's status and, when it is linked, the
// appointment's, in one transaction. Any known status is accepted.
func (s *Service) UpdateQueueStatus(ctx context.Context, id uuid.UUID, status string) (*QueueEntry, error) {
	return s.UpdateQueueEntry(ctx, id, QueueUpdate{Status: &status})
}

// UpdateQueueEntry applies u. A status change goes through the same path as
// UpdateQueueStatus.
func (s *Service) UpdateQueueEntry(ctx context.Context, id uuid.UUID, u QueueUpdate) (*QueueEntry, error) {
	var newStatus string
	if u.Status != nil {
		if newStatus = NormalizeQueueStatus(*u.Status); newStatus == "" {
			return nil, invalidStatus(*u.Status)
		}
	}

	var (
		entry         *QueueEntry
		statusChanged bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		q, err := s.queue.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.Notes != nil || u.DentistID != nil {
			if err := s.queue.Update(ctx, q.ID, u); err != nil {
				return err
			}
		}
		if newStatus != "" {
			statusChanged = q.Status != newStatus
			if err := s.queue.UpdateStatus(ctx, q.ID, newStatus); err != nil {
				return err
			}
			if q.AppointmentID != nil {
				if err := s.appointments.UpdateStatus(ctx, *q.AppointmentID, newStatus); err != nil {
					return err
				}
			}
		}
		entry, err = s.queue.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if statusChanged {
		s.publish(ctx, events.TypeQueueStatusChanged, entry)
		if entry.AppointmentID != nil {
			s.publish(ctx, events.TypeAppointmentStatusChanged, map[string]interface{}{
				"appointment_id": *entry.AppointmentID,
				"status":         entry.Status,
			})
		}
	}
	return entry, nil
}

func (s *Service) DeleteQueueEntry(ctx context.Context, id uuid.UUID) error {
	return s.queue.Delete(ctx, id)
}

// StartAt combines a "YYYY-MM-DD" date and a clock ("HH:MM" or
// "h:mm AM/PM") into an instant on the clinic calendar.
func (s *Service) StartAt(date, clock string) (*time.Time, error) {
	d, err := ParseDate(date, s.loc)
	if err != nil {
		return nil, httperr.Invalid("%s", err.Error())
	}
	m, err := ParseClock(clock)
	if err != nil {
		return nil, httperr.Invalid("%s", err.Error())
	}
	t := time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, s.loc)
	return &t, nil
}
