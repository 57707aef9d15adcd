package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dentaldesk/clinic/internal/platform/httperr"
)

type Service struct {
	patients PatientRepository
	dentists DentistRepository

	dentistRemoved []func(ctx context.Context, id uuid.UUID)
}

func NewService(patients PatientRepository, dentists DentistRepository) *Service {
	return &Service{patients: patients, dentists: dentists}
}

// OnDentistRemoved registers fn to run after a dentist is deleted.
func (s *Service) OnDentistRemoved(fn func(ctx context.Context, id uuid.UUID)) {
	s.dentistRemoved = append(s.dentistRemoved, fn)
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	normalizePatient(p)
	if p.FirstName == "" || p.LastName == "" {
		return httperr.Invalid("first_name and last_name are required")
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	normalizePatient(p)
	if p.FirstName == "" || p.LastName == "" {
		return httperr.Invalid("first_name and last_name are required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) SearchPatients(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, params, limit, offset)
}

func normalizePatient(p *Patient) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
}

// -- Dentist --

func (s *Service) CreateDentist(ctx context.Context, d *Dentist) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return httperr.Invalid("name is required")
	}
	d.Active = true
	return s.dentists.Create(ctx, d)
}

func (s *Service) GetDentist(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return s.dentists.GetByID(ctx, id)
}

func (s *Service) UpdateDentist(ctx context.Context, d *Dentist) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return httperr.Invalid("name is required")
	}
	return s.dentists.Update(ctx, d)
}

func (s *Service) DeleteDentist(ctx context.Context, id uuid.UUID) error {
	if err := s.dentists.Delete(ctx, id); err != nil {
		return err
	}
	for _, fn := range s.dentistRemoved {
		fn(ctx, id)
	}
	return nil
}

func (s *Service) ListDentists(ctx context.Context, activeOnly bool, limit, offset int) ([]*Dentist, int, error) {
	return s.dentists.List(ctx, activeOnly, limit, offset)
}
