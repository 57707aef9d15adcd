package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name" validate:"required,max=100"`
	MiddleName *string   `db:"middle_name" json:"middle_name,omitempty" validate:"omitempty,max=100"`
	LastName   string    `db:"last_name" json:"last_name" validate:"required,max=100"`
	BirthDate  *string   `db:"birth_date" json:"birth_date,omitempty" validate:"omitempty,date"`
	Sex        *string   `db:"sex" json:"sex,omitempty" validate:"omitempty,oneof=male female other"`
	Phone      *string   `db:"phone" json:"phone,omitempty" validate:"omitempty,phone"`
	Email      *string   `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Address    *string   `db:"address" json:"address,omitempty"`
	Occupation *string   `db:"occupation" json:"occupation,omitempty"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first, middle and last name.
func (p *Patient) FullName() string {
	parts := []string{p.FirstName}
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, *p.MiddleName)
	}
	parts = append(parts, p.LastName)
	return strings.Join(parts, " ")
}

// Dentist maps to the dentist table. ScheduleStatus is read from
// dentist_schedule and is not writable through this type.
type Dentist struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name" validate:"required,max=150"`
	Specialty      *string   `db:"specialty" json:"specialty,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty" validate:"omitempty,phone"`
	Email          *string   `db:"email" json:"email,omitempty" validate:"omitempty,email"`
	Active         bool      `db:"active" json:"active"`
	ScheduleStatus *string   `json:"schedule_status,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
