package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/clinic/internal/domain/identity"
)

// SlotMinutes is the fixed length of an appointment and of a slot.
const SlotMinutes = 30

// Appointment and queue statuses.
const (
	StatusScheduled = "Scheduled"
	StatusCheckedIn = "Checked-In"
	StatusWaiting   = "Waiting"
	StatusOnChair   = "On Chair"
	StatusTreatment = "Treatment"
	StatusBilling   = "Payment/Billing"
	StatusDone      = "Done"
	StatusCancelled = "Cancelled"
	StatusNoShow    = "No-Show"
)

// Schedule status values.
const (
	ScheduleAvailable = "Available"
	ScheduleBusy      = "Busy"
	ScheduleOff       = "Off"
)

// Queue entry sources.
const (
	SourceWalkIn      = "walk-in"
	SourceAppointment = "appointment"
)

var appointmentStatuses = []string{
	StatusScheduled, StatusCheckedIn, StatusWaiting, StatusOnChair,
	StatusTreatment, StatusBilling, StatusDone, StatusCancelled, StatusNoShow,
}

// NormalizeStatus maps s case-insensitively onto a known appointment status.
// It returns "" when s is not one.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	for _, known := range appointmentStatuses {
		if strings.EqualFold(s, known) {
			return known
		}
	}
	return ""
}

// NormalizeQueueStatus is NormalizeStatus without Scheduled, which a queue
// entry never starts in.
func NormalizeQueueStatus(s string) string {
	if st := NormalizeStatus(s); st != StatusScheduled {
		return st
	}
	return ""
}

// IsTerminal reports Done, Cancelled and No-Show. Case and surrounding space
// are ignored.
func IsTerminal(status string) bool {
	switch NormalizeStatus(status) {
	case StatusDone, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func isCancelled(status string) bool {
	return NormalizeStatus(status) == StatusCancelled
}

// Interval is a clock range such as operating hours or a lunch break.
type Interval struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

// Minutes returns the interval as minutes since midnight.
func (iv Interval) Minutes() (int, int) {
	return To24HourMinutes(iv.Start), To24HourMinutes(iv.End)
}

// Calendar is a dentist's working calendar, stored as JSONB.
type Calendar struct {
	WorkingDays    []int      `json:"working_days" validate:"dive,min=0,max=6"`
	OperatingHours Interval   `json:"operating_hours"`
	Lunch          *Interval  `json:"lunch,omitempty"`
	Breaks         []Interval `json:"breaks,omitempty" validate:"dive"`
	LeaveDays      []string   `json:"leave_days,omitempty" validate:"dive,date"`
	Status         string     `json:"status" validate:"required,oneof=Available Busy Off"`
}

// DefaultCalendar applies to dentists that never saved a calendar.
func DefaultCalendar() Calendar {
	return Calendar{
		WorkingDays:    []int{1, 2, 3, 4, 5},
		OperatingHours: Interval{Start: "09:00", End: "17:00"},
		Lunch:          &Interval{Start: "12:00", End: "13:00"},
		Status:         ScheduleAvailable,
	}
}

// ClosedOn reports whether the dentist does not work on day.
func (c *Calendar) ClosedOn(day time.Time) bool {
	if strings.EqualFold(strings.TrimSpace(c.Status), ScheduleOff) {
		return true
	}
	working := false
	for _, wd := range c.WorkingDays {
		if time.Weekday(wd) == day.Weekday() {
			working = true
			break
		}
	}
	if !working {
		return true
	}
	date := LocalISODate(day)
	for _, leave := range c.LeaveDays {
		if strings.TrimSpace(leave) == date {
			return true
		}
	}
	return false
}

// Schedule maps to the dentist_schedule table.
type Schedule struct {
	DentistID uuid.UUID  `json:"dentist_id"`
	Calendar  Calendar   `json:"calendar"`
	IsDefault bool       `json:"is_default"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Appointment maps to the appointment table. PatientName and DentistName
// are filled by list queries.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id" validate:"required"`
	DentistID       *uuid.UUID `db:"dentist_id" json:"dentist_id,omitempty"`
	StartTime       *time.Time `db:"start_time" json:"start_time,omitempty"`
	MinutesDuration int        `db:"minutes_duration" json:"minutes_duration"`
	Procedure       string     `db:"procedure" json:"procedure" validate:"max=500"`
	Status          string     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	PatientName string `json:"patient_name,omitempty"`
	DentistName string `json:"dentist_name,omitempty"`
}

// window returns the appointment's [start, end) minute range in loc, or the
// (-1, -1) sentinel when it has no start time.
func (a *Appointment) window(loc *time.Location) (int, int) {
	if a.StartTime == nil {
		return -1, -1
	}
	start := MinuteOfDay(a.StartTime.In(loc))
	return start, start + SlotMinutes
}

// QueueEntry maps to the queue_entry table. For linked entries Status is
// projected from the appointment on read.
type QueueEntry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DentistID     *uuid.UUID `db:"dentist_id" json:"dentist_id,omitempty"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Source        string     `db:"source" json:"source"`
	Status        string     `db:"status" json:"status"`
	Procedure     *string    `db:"procedure" json:"procedure,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	TimeAdded     time.Time  `db:"time_added" json:"time_added"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	PatientName string `json:"patient_name,omitempty"`
	DentistName string `json:"dentist_name,omitempty"`
}

// Slot is one 30-minute cell of a dentist's day.
type Slot struct {
	Minute     int    `json:"minute"`
	Time       string `json:"time"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Selectable bool   `json:"selectable"`
}

// Slot types in classification order.
const (
	SlotLunch  = "lunch"
	SlotBreak  = "break"
	SlotPast   = "past"
	SlotBooked = "booked"
	SlotOpen   = "open"
)

// ConflictMessage describes two overlapping appointments of one dentist.
type ConflictMessage struct {
	ID             string       `json:"id"`
	Dentist        string       `json:"dentist"`
	AppointmentIDs [2]uuid.UUID `json:"appointment_ids"`
	Patients       [2]string    `json:"patients"`
	Start          time.Time    `json:"start"`
	Message        string       `json:"message"`
}

// LimitStatus is the daily appointment count of one dentist.
type LimitStatus struct {
	DentistID uuid.UUID `json:"dentist_id"`
	Date      string    `json:"date"`
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	IsFull    bool      `json:"is_full"`
}

// AppointmentFilter narrows appointment listings. From/To bound start_time.
type AppointmentFilter struct {
	DentistID *uuid.UUID
	PatientID *uuid.UUID
	Status    string
	From      *time.Time
	To        *time.Time
}

// BookingRequest creates an appointment, optionally for a patient that does
// not exist yet.
type BookingRequest struct {
	Patient     *identity.Patient `json:"patient,omitempty"`
	Appointment Appointment       `json:"appointment"`
}

// WalkInRequest adds a walk-in to the queue, optionally registering the
// patient in the same transaction.
type WalkInRequest struct {
	PatientID *uuid.UUID        `json:"patient_id,omitempty"`
	Patient   *identity.Patient `json:"patient,omitempty"`
	DentistID *uuid.UUID        `json:"dentist_id,omitempty"`
	Procedure *string           `json:"procedure,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	Status    string            `json:"status,omitempty"`
}

// QueueUpdate is the body of PUT /queue/:id. Nil fields are left alone.
type QueueUpdate struct {
	Status    *string    `json:"status,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	DentistID *uuid.UUID `json:"dentist_id,omitempty"`
}
