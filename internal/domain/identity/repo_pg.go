package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/clinic/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, first_name, middle_name, last_name, to_char(birth_date, 'YYYY-MM-DD'),
	sex, phone, email, address, occupation, notes, active, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (id, first_name, middle_name, last_name, birth_date,
			sex, phone, email, address, occupation, notes, active)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.BirthDate,
		p.Sex, p.Phone, p.Email, p.Address, p.Occupation, p.Notes, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient SET
			first_name=$2, middle_name=$3, last_name=$4, birth_date=$5::date,
			sex=$6, phone=$7, email=$8, address=$9, occupation=$10, notes=$11,
			active=$12, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.BirthDate,
		p.Sex, p.Phone, p.Email, p.Address, p.Occupation, p.Notes, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.MapNoRows(err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, nil, limit, offset)
}

// Search filters by "name" (any name part, case-insensitive), "phone"
// (substring) and "active".
func (r *patientRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patient WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patient WHERE 1=1`
	var args []interface{}
	idx := 1

	if v, ok := params["name"]; ok && v != "" {
		clause := fmt.Sprintf(` AND (first_name || ' ' || COALESCE(middle_name || ' ', '') || last_name) ILIKE $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+v+"%")
		idx++
	}
	if v, ok := params["phone"]; ok && v != "" {
		clause := fmt.Sprintf(` AND phone LIKE $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+v+"%")
		idx++
	}
	if v, ok := params["active"]; ok && v != "" {
		clause := fmt.Sprintf(` AND active = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, v == "true")
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query += fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.FirstName, &p.MiddleName, &p.LastName, &p.BirthDate,
		&p.Sex, &p.Phone, &p.Email, &p.Address, &p.Occupation, &p.Notes,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Dentist Repository --

type dentistRepoPG struct {
	pool *pgxpool.Pool
}

func NewDentistRepo(pool *pgxpool.Pool) DentistRepository {
	return &dentistRepoPG{pool: pool}
}

const dentistCols = `d.id, d.name, d.specialty, d.phone, d.email, d.active,
	s.calendar->>'status', d.created_at, d.updated_at`

const dentistFrom = ` FROM dentist d LEFT JOIN dentist_schedule s ON s.dentist_id = d.id`

func (r *dentistRepoPG) Create(ctx context.Context, d *Dentist) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dentist (id, name, specialty, phone, email, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone, d.Email, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert dentist: %w", err)
	}
	return nil
}

func (r *dentistRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	d, err := scanDentist(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+dentistCols+dentistFrom+` WHERE d.id = $1`, id))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return d, nil
}

func (r *dentistRepoPG) Update(ctx context.Context, d *Dentist) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE dentist SET name=$2, specialty=$3, phone=$4, email=$5, active=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialty, d.Phone, d.Email, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return db.MapNoRows(err)
	}
	return nil
}

func (r *dentistRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM dentist WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dentist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *dentistRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Dentist, int, error) {
	where := ` WHERE 1=1`
	if activeOnly {
		where += ` AND d.active`
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM dentist d`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dentists: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+dentistCols+dentistFrom+where+` ORDER BY d.name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list dentists: %w", err)
	}
	defer rows.Close()

	dentists := []*Dentist{}
	for rows.Next() {
		d, err := scanDentist(rows)
		if err != nil {
			return nil, 0, err
		}
		dentists = append(dentists, d)
	}
	return dentists, total, rows.Err()
}

func scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(
		&d.ID, &d.Name, &d.Specialty, &d.Phone, &d.Email, &d.Active,
		&d.ScheduleStatus, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
