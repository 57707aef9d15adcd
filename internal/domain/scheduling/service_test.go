package scheduling

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/clinic/internal/domain/identity"
	"github.com/dentaldesk/clinic/internal/platform/db"
	"github.com/dentaldesk/clinic/internal/platform/events"
)

// -- Mock Repositories --

type mockScheduleRepo struct {
	dentists  map[uuid.UUID]bool
	schedules map[uuid.UUID]*Schedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{dentists: map[uuid.UUID]bool{}, schedules: map[uuid.UUID]*Schedule{}}
}

func (m *mockScheduleRepo) Get(_ context.Context, dentistID uuid.UUID) (*Schedule, error) {
	if !m.dentists[dentistID] {
		return nil, db.ErrNotFound
	}
	if s, ok := m.schedules[dentistID]; ok {
		cp := *s
		return &cp, nil
	}
	return &Schedule{DentistID: dentistID, Calendar: DefaultCalendar(), IsDefault: true}, nil
}

func (m *mockScheduleRepo) Forget(_ context.Context, dentistID uuid.UUID) error {
	delete(m.schedules, dentistID)
	return nil
}

func (m *mockScheduleRepo) Upsert(_ context.Context, s *Schedule) error {
	if !m.dentists[s.DentistID] {
		return db.ErrNotFound
	}
	now := time.Now()
	s.UpdatedAt = &now
	cp := *s
	m.schedules[s.DentistID] = &cp
	return nil
}

type mockAppointmentRepo struct {
	appts map[uuid.UUID]*Appointment
	locks []string
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: map[uuid.UUID]*Appointment{}}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	a, ok := m.appts[id]
	if !ok {
		return db.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	result := []*Appointment{}
	for _, a := range m.appts {
		if f.DentistID != nil && (a.DentistID == nil || *a.DentistID != *f.DentistID) {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if (f.From != nil || f.To != nil) && a.StartTime == nil {
			continue
		}
		if f.From != nil && a.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.StartTime.Before(*f.To) {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) CountActive(_ context.Context, dentistID uuid.UUID, from, to time.Time, exclude uuid.UUID) (int, error) {
	n := 0
	for _, a := range m.appts {
		if a.ID == exclude || a.DentistID == nil || *a.DentistID != dentistID || a.StartTime == nil {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) || a.Status == StatusCancelled {
			continue
		}
		n++
	}
	return n, nil
}

func (m *mockAppointmentRepo) LockDentistDay(_ context.Context, dentistID uuid.UUID, day string) error {
	m.locks = append(m.locks, dentistID.String()+":"+day)
	return nil
}

// mockQueueRepo projects the linked appointment on read, as the SQL does.
type mockQueueRepo struct {
	entries map[uuid.UUID]*QueueEntry
	appts   *mockAppointmentRepo
}

func newMockQueueRepo(appts *mockAppointmentRepo) *mockQueueRepo {
	return &mockQueueRepo{entries: map[uuid.UUID]*QueueEntry{}, appts: appts}
}

func (m *mockQueueRepo) project(q *QueueEntry) *QueueEntry {
	cp := *q
	if q.AppointmentID != nil {
		if a, ok := m.appts.appts[*q.AppointmentID]; ok {
			cp.Status = a.Status
			if cp.DentistID == nil {
				cp.DentistID = a.DentistID
			}
			if cp.Procedure == nil {
				procedure := a.Procedure
				cp.Procedure = &procedure
			}
		}
	}
	return &cp
}

func (m *mockQueueRepo) Create(_ context.Context, q *QueueEntry) error {
	q.ID = uuid.New()
	q.TimeAdded = time.Now()
	q.UpdatedAt = q.TimeAdded
	cp := *q
	m.entries[q.ID] = &cp
	return nil
}

func (m *mockQueueRepo) GetByID(_ context.Context, id uuid.UUID) (*QueueEntry, error) {
	q, ok := m.entries[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return m.project(q), nil
}

func (m *mockQueueRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*QueueEntry, error) {
	for _, q := range m.entries {
		if q.AppointmentID != nil && *q.AppointmentID == appointmentID {
			return m.project(q), nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockQueueRepo) Update(_ context.Context, id uuid.UUID, u QueueUpdate) error {
	stored, ok := m.entries[id]
	if !ok {
		return db.ErrNotFound
	}
	if u.Notes != nil {
		stored.Notes = u.Notes
	}
	if u.DentistID != nil {
		stored.DentistID = u.DentistID
	}
	return nil
}

func (m *mockQueueRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	q, ok := m.entries[id]
	if !ok {
		return db.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *mockQueueRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.entries[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *mockQueueRepo) ListAdded(_ context.Context, from, to time.Time) ([]*QueueEntry, error) {
	result := []*QueueEntry{}
	for _, q := range m.entries {
		if !q.TimeAdded.Before(from) && q.TimeAdded.Before(to) {
			result = append(result, m.project(q))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TimeAdded.Before(result[j].TimeAdded) })
	return result, nil
}

func (m *mockQueueRepo) ActiveForPatient(_ context.Context, patientID uuid.UUID, from, to time.Time) (*QueueEntry, error) {
	for _, q := range m.entries {
		p := m.project(q)
		if p.PatientID == patientID && !IsTerminal(p.Status) && !p.TimeAdded.Before(from) && p.TimeAdded.Before(to) {
			return p, nil
		}
	}
	return nil, db.ErrNotFound
}

type countingTx struct{ calls int }

func (t *countingTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type mockPatients struct {
	created []*identity.Patient
}

func (m *mockPatients) CreatePatient(_ context.Context, p *identity.Patient) error {
	p.ID = uuid.New()
	p.Active = true
	m.created = append(m.created, p)
	return nil
}

type testEnv struct {
	svc       *Service
	schedules *mockScheduleRepo
	appts     *mockAppointmentRepo
	queue     *mockQueueRepo
	tx        *countingTx
	patients  *mockPatients
	events    *events.Recorder
	dentist   uuid.UUID
}

// newTestEnv freezes the clock at 2026-03-16 08:00 in the clinic zone.
func newTestEnv() *testEnv {
	env := &testEnv{
		schedules: newMockScheduleRepo(),
		appts:     newMockAppointmentRepo(),
		tx:        &countingTx{},
		patients:  &mockPatients{},
		events:    &events.Recorder{},
		dentist:   uuid.New(),
	}
	env.queue = newMockQueueRepo(env.appts)
	env.schedules.dentists[env.dentist] = true

	env.svc = NewService(env.schedules, env.appts, env.queue, env.tx)
	env.svc.SetPatientCreator(env.patients)
	env.svc.SetPublisher(env.events)
	env.svc.SetClock(clinicLoc, func() time.Time { return at(2026, time.March, 16, 8, 0) })
	return env
}

func (env *testEnv) book(t *testing.T, start time.Time) *Appointment {
	t.Helper()
	a := &Appointment{PatientID: uuid.New(), DentistID: ptrUUID(env.dentist), StartTime: ptrTime(start)}
	if err := env.svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	return a
}

func (env *testEnv) eventTypes() []string {
	var types []string
	for _, e := range env.events.Events() {
		types = append(types, e.Type)
	}
	return types
}

// -- Appointment Tests --

func TestService_CreateAppointment_Defaults(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 10, 0))
	if a.Status != StatusScheduled || a.MinutesDuration != 30 {
		t.Errorf("unexpected defaults: status=%q duration=%d", a.Status, a.MinutesDuration)
	}
	if env.tx.calls != 1 {
		t.Errorf("expected create to run in a transaction, got %d", env.tx.calls)
	}
	if types := env.eventTypes(); len(types) != 1 || types[0] != events.TypeAppointmentBooked {
		t.Errorf("unexpected events %v", types)
	}
}

func TestService_CreateAppointment_Validation(t *testing.T) {
	env := newTestEnv()
	if err := env.svc.CreateAppointment(context.Background(), &Appointment{}); err == nil {
		t.Error("expected error without patient_id")
	}
	err := env.svc.CreateAppointment(context.Background(), &Appointment{PatientID: uuid.New(), Status: "Sleeping"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestService_CreateAppointment_NormalizesStatus(t *testing.T) {
	env := newTestEnv()
	a := &Appointment{PatientID: uuid.New(), Status: " on chair "}
	if err := env.svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusOnChair {
		t.Errorf("expected %q, got %q", StatusOnChair, a.Status)
	}
}

func TestService_CreateAppointment_DailyLimit(t *testing.T) {
	env := newTestEnv()
	for h := 9; h < 9+DefaultDailyLimit; h++ {
		env.book(t, at(2026, time.March, 16, h, 0))
	}

	extra := &Appointment{PatientID: uuid.New(), DentistID: ptrUUID(env.dentist), StartTime: ptrTime(at(2026, time.March, 16, 15, 0))}
	if err := env.svc.CreateAppointment(context.Background(), extra); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if len(env.appts.locks) == 0 || env.appts.locks[0] != env.dentist.String()+":2026-03-16" {
		t.Errorf("expected dentist/day lock, got %v", env.appts.locks)
	}

	// Another day is unaffected.
	env.book(t, at(2026, time.March, 17, 9, 0))

	// Cancelled bookings never count and are never blocked.
	cancelled := &Appointment{PatientID: uuid.New(), DentistID: ptrUUID(env.dentist),
		StartTime: ptrTime(at(2026, time.March, 16, 16, 0)), Status: StatusCancelled}
	if err := env.svc.CreateAppointment(context.Background(), cancelled); err != nil {
		t.Errorf("cancelled appointment should bypass the limit: %v", err)
	}
}

func TestService_CreateAppointment_LimitNotEnforced(t *testing.T) {
	env := newTestEnv()
	env.svc.SetLimit(1, false)
	env.book(t, at(2026, time.March, 16, 9, 0))
	env.book(t, at(2026, time.March, 16, 10, 0))

	st, err := env.svc.CheckLimit(context.Background(), env.dentist, "2026-03-16")
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 2 || st.Limit != 1 || !st.IsFull {
		t.Errorf("unexpected limit status %+v", st)
	}
}

func TestService_CheckLimit(t *testing.T) {
	env := newTestEnv()
	env.book(t, at(2026, time.March, 16, 9, 0))
	a := env.book(t, at(2026, time.March, 16, 10, 0))
	env.appts.appts[a.ID].Status = StatusCancelled

	st, err := env.svc.CheckLimit(context.Background(), env.dentist, "")
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 1 || st.Limit != 5 || st.IsFull || st.Date != "2026-03-16" {
		t.Errorf("unexpected limit status %+v", st)
	}

	if _, err := env.svc.CheckLimit(context.Background(), env.dentist, "16/03/2026"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestService_UpdateAppointment_MoveRechecksLimit(t *testing.T) {
	env := newTestEnv()
	env.svc.SetLimit(1, true)
	env.book(t, at(2026, time.March, 16, 9, 0))
	other := env.book(t, at(2026, time.March, 17, 9, 0))

	// Same-day edit passes even though the day is full.
	other.StartTime = ptrTime(at(2026, time.March, 17, 11, 0))
	if err := env.svc.UpdateAppointment(context.Background(), other); err != nil {
		t.Fatalf("same-day edit: %v", err)
	}

	other.StartTime = ptrTime(at(2026, time.March, 16, 11, 0))
	if err := env.svc.UpdateAppointment(context.Background(), other); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
}

func TestService_Book_NewPatient(t *testing.T) {
	env := newTestEnv()
	req := &BookingRequest{
		Patient: &identity.Patient{FirstName: "Maria", LastName: "Santos"},
		Appointment: Appointment{
			DentistID: ptrUUID(env.dentist),
			StartTime: ptrTime(at(2026, time.March, 16, 10, 0)),
			Procedure: "Cleaning, X-Ray",
		},
	}
	a, err := env.svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if len(env.patients.created) != 1 || a.PatientID != env.patients.created[0].ID {
		t.Errorf("appointment not linked to new patient")
	}
	if env.tx.calls != 1 {
		t.Errorf("expected a single transaction, got %d", env.tx.calls)
	}
}

func TestService_Book_ExistingPatientRequired(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.Book(context.Background(), &BookingRequest{}); err == nil {
		t.Error("expected error without patient")
	}
}

// -- Slots & Conflicts --

func TestService_Slots(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 10, 0))

	slots, err := env.svc.Slots(context.Background(), env.dentist, "2026-03-16", uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	// Default calendar: 09:00–17:00 with lunch 12:00–13:00; clock is 08:00.
	if got := slotAt(t, slots, "10:00"); got.Type != SlotBooked {
		t.Errorf("10:00: expected booked, got %s", got.Type)
	}
	if got := slotAt(t, slots, "12:00"); got.Type != SlotLunch {
		t.Errorf("12:00: expected lunch, got %s", got.Type)
	}

	slots, _ = env.svc.Slots(context.Background(), env.dentist, "2026-03-16", a.ID)
	if got := slotAt(t, slots, "10:00"); got.Type != SlotOpen {
		t.Errorf("excluded appointment should not book 10:00, got %s", got.Type)
	}

	if _, err := env.svc.Slots(context.Background(), uuid.New(), "2026-03-16", uuid.Nil); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown dentist, got %v", err)
	}
}

func TestService_Conflicts(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 9, 0))
	env.book(t, at(2026, time.March, 16, 9, 15))
	env.appts.appts[a.ID].DentistName = "Dr. Cruz"

	got, err := env.svc.Conflicts(context.Background(), "2026-03-16")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Dentist != "Dr. Cruz" {
		t.Fatalf("expected one conflict for Dr. Cruz, got %+v", got)
	}

	got, _ = env.svc.Conflicts(context.Background(), "2026-03-17")
	if len(got) != 0 {
		t.Errorf("expected no conflicts on another day, got %d", len(got))
	}
}

// -- Schedule --

func TestService_UpdateSchedule(t *testing.T) {
	env := newTestEnv()
	s := &Schedule{DentistID: env.dentist, Calendar: Calendar{
		WorkingDays:    []int{5, 1, 1, 3},
		OperatingHours: Interval{Start: "8:00 AM", End: "4:00 PM"},
		Status:         "busy",
	}}
	if err := env.svc.UpdateSchedule(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	got, _ := env.svc.GetSchedule(context.Background(), env.dentist)
	if got.Calendar.Status != ScheduleBusy || len(got.Calendar.WorkingDays) != 3 || got.Calendar.WorkingDays[0] != 1 {
		t.Errorf("unexpected stored calendar %+v", got.Calendar)
	}
	if got.IsDefault {
		t.Error("saved calendar should not be reported as default")
	}
	if types := env.eventTypes(); len(types) != 1 || types[0] != events.TypeScheduleUpdated {
		t.Errorf("unexpected events %v", types)
	}

	s.Calendar.Status = "Vacation"
	if err := env.svc.UpdateSchedule(context.Background(), s); err == nil {
		t.Error("expected error for unknown schedule status")
	}
}

// -- Queue & status sync --

func TestService_UpdateQueueStatus_SyncsLinkedAppointment(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 9, 0))
	q, err := env.svc.CheckIn(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	got, err := env.svc.UpdateQueueStatus(context.Background(), q.ID, "Done")
	if err != nil {
		t.Fatalf("UpdateQueueStatus: %v", err)
	}
	if got.Status != StatusDone {
		t.Errorf("queue entry status = %q, want Done", got.Status)
	}
	if env.queue.entries[q.ID].Status != StatusDone {
		t.Errorf("stored queue status = %q, want Done", env.queue.entries[q.ID].Status)
	}
	appt, _ := env.svc.GetAppointment(context.Background(), a.ID)
	if appt.Status != StatusDone {
		t.Errorf("appointment status = %q, want Done", appt.Status)
	}
}

func TestService_UpdateQueueStatus_AcceptsAnyTransition(t *testing.T) {
	env := newTestEnv()
	q, err := env.svc.AddWalkIn(context.Background(), &WalkInRequest{PatientID: ptrUUID(uuid.New())})
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range []string{StatusDone, StatusWaiting, "payment/billing", StatusNoShow, StatusCheckedIn} {
		got, err := env.svc.UpdateQueueStatus(context.Background(), q.ID, st)
		if err != nil {
			t.Fatalf("%s: %v", st, err)
		}
		if got.Status != NormalizeStatus(st) {
			t.Errorf("expected %q, got %q", NormalizeStatus(st), got.Status)
		}
	}
}

func TestService_UpdateQueueStatus_Invalid(t *testing.T) {
	env := newTestEnv()
	q, _ := env.svc.AddWalkIn(context.Background(), &WalkInRequest{PatientID: ptrUUID(uuid.New())})
	for _, st := range []string{"Sleeping", StatusScheduled, ""} {
		if _, err := env.svc.UpdateQueueStatus(context.Background(), q.ID, st); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("%q: expected ErrInvalidStatus, got %v", st, err)
		}
	}
	if _, err := env.svc.UpdateQueueStatus(context.Background(), uuid.New(), StatusDone); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_AppointmentEditReflectsInQueue(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 9, 0))
	q, _ := env.svc.CheckIn(context.Background(), a.ID)

	appt, _ := env.svc.GetAppointment(context.Background(), a.ID)
	appt.Status = StatusTreatment
	if err := env.svc.UpdateAppointment(context.Background(), appt); err != nil {
		t.Fatal(err)
	}
	got, _ := env.svc.GetQueueEntry(context.Background(), q.ID)
	if got.Status != StatusTreatment {
		t.Errorf("queue status = %q, want Treatment", got.Status)
	}
	if env.queue.entries[q.ID].Status != StatusTreatment {
		t.Errorf("stored queue status = %q, want Treatment", env.queue.entries[q.ID].Status)
	}
}

func TestService_UpdateQueueEntry_NotesAndDentist(t *testing.T) {
	env := newTestEnv()
	q, _ := env.svc.AddWalkIn(context.Background(), &WalkInRequest{PatientID: ptrUUID(uuid.New())})
	notes := "toothache, lower left"
	got, err := env.svc.UpdateQueueEntry(context.Background(), q.ID, QueueUpdate{Notes: &notes, DentistID: ptrUUID(env.dentist)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Notes == nil || *got.Notes != notes || got.DentistID == nil || *got.DentistID != env.dentist {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.Status != StatusCheckedIn {
		t.Errorf("status should be untouched, got %q", got.Status)
	}
}

func TestService_UpdateQueueEntry_NotesKeepAppointmentFallback(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 9, 0))
	q := &QueueEntry{PatientID: a.PatientID, AppointmentID: &a.ID, Source: SourceAppointment, Status: StatusCheckedIn}
	env.queue.Create(context.Background(), q)

	notes := "sensitive to cold"
	if _, err := env.svc.UpdateQueueEntry(context.Background(), q.ID, QueueUpdate{Notes: &notes}); err != nil {
		t.Fatal(err)
	}
	stored := env.queue.entries[q.ID]
	if stored.DentistID != nil || stored.Procedure != nil {
		t.Fatalf("notes edit should not pin dentist or procedure, got %+v", stored)
	}

	other := uuid.New()
	env.appts.appts[a.ID].DentistID = &other
	env.appts.appts[a.ID].Procedure = "Extraction"
	got, _ := env.svc.GetQueueEntry(context.Background(), q.ID)
	if got.DentistID == nil || *got.DentistID != other || got.Procedure == nil || *got.Procedure != "Extraction" {
		t.Errorf("expected appointment changes to show through, got %+v", got)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("notes = %v, want %q", got.Notes, notes)
	}
}

func TestService_CheckIn(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 9, 0))

	q, err := env.svc.CheckIn(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if q.Source != SourceAppointment || q.AppointmentID == nil || *q.AppointmentID != a.ID {
		t.Errorf("unexpected entry %+v", q)
	}
	appt, _ := env.svc.GetAppointment(context.Background(), a.ID)
	if appt.Status != StatusCheckedIn {
		t.Errorf("appointment status = %q, want Checked-In", appt.Status)
	}

	if _, err := env.svc.CheckIn(context.Background(), a.ID); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("expected ErrAlreadyQueued, got %v", err)
	}

	done := env.book(t, at(2026, time.March, 16, 11, 0))
	env.appts.appts[done.ID].Status = StatusNoShow
	if _, err := env.svc.CheckIn(context.Background(), done.ID); !errors.Is(err, ErrAppointmentClosed) {
		t.Errorf("expected ErrAppointmentClosed, got %v", err)
	}
}

func TestService_AddWalkIn_NewPatient(t *testing.T) {
	env := newTestEnv()
	q, err := env.svc.AddWalkIn(context.Background(), &WalkInRequest{
		Patient: &identity.Patient{FirstName: "Jose", LastName: "Rizal"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(env.patients.created) != 1 || q.PatientID != env.patients.created[0].ID {
		t.Error("walk-in not linked to the new patient")
	}
	if q.Source != SourceWalkIn || q.Status != StatusCheckedIn {
		t.Errorf("unexpected walk-in %+v", q)
	}

	if _, err := env.svc.AddWalkIn(context.Background(), &WalkInRequest{}); err == nil {
		t.Error("expected error without patient")
	}
}

func TestService_QueueStatus(t *testing.T) {
	env := newTestEnv()
	env.svc.SetClock(nil, time.Now)
	patient := uuid.New()
	q, _ := env.svc.AddWalkIn(context.Background(), &WalkInRequest{PatientID: &patient})

	got, err := env.svc.QueueStatus(context.Background(), patient)
	if err != nil || got.ID != q.ID {
		t.Fatalf("expected active entry, got %v %v", got, err)
	}

	env.svc.UpdateQueueStatus(context.Background(), q.ID, StatusDone)
	if _, err := env.svc.QueueStatus(context.Background(), patient); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("finished patient should not be active, got %v", err)
	}
}

func TestService_StatusEventsPublished(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, at(2026, time.March, 16, 9, 0))
	q, _ := env.svc.CheckIn(context.Background(), a.ID)
	env.svc.UpdateQueueStatus(context.Background(), q.ID, StatusOnChair)

	want := []string{
		events.TypeAppointmentBooked,
		events.TypeQueueStatusChanged,
		events.TypeQueueStatusChanged,
		events.TypeAppointmentStatusChanged,
	}
	got := env.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestService_StartAt(t *testing.T) {
	env := newTestEnv()
	got, err := env.svc.StartAt("2026-03-16", "2:30 PM")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(at(2026, time.March, 16, 14, 30)) {
		t.Errorf("StartAt = %s", got)
	}
	if _, err := env.svc.StartAt("2026-03-16", "25:00"); err == nil {
		t.Error("expected error for bad clock")
	}
}
