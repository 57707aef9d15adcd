package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/clinic/internal/platform/db"
)

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

// Forget is a no-op: dentist_schedule rows go with the dentist (ON DELETE CASCADE).
func (r *scheduleRepoPG) Forget(context.Context, uuid.UUID) error { return nil }

func (r *scheduleRepoPG) Get(ctx context.Context, dentistID uuid.UUID) (*Schedule, error) {
	var (
		s   Schedule
		raw []byte
	)
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT d.id, s.calendar, s.updated_at
		FROM dentist d LEFT JOIN dentist_schedule s ON s.dentist_id = d.id
		WHERE d.id = $1`, dentistID).Scan(&s.DentistID, &raw, &s.UpdatedAt)
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	if raw == nil {
		s.Calendar = DefaultCalendar()
		s.IsDefault = true
		return &s, nil
	}
	if err := json.Unmarshal(raw, &s.Calendar); err != nil {
		return nil, fmt.Errorf("decode calendar for dentist %s: %w", dentistID, err)
	}
	return &s, nil
}

func (r *scheduleRepoPG) Upsert(ctx context.Context, s *Schedule) error {
	raw, err := json.Marshal(s.Calendar)
	if err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	var updated time.Time
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dentist_schedule (dentist_id, calendar, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (dentist_id) DO UPDATE SET calendar = EXCLUDED.calendar, updated_at = NOW()
		RETURNING updated_at`, s.DentistID, string(raw)).Scan(&updated)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	s.UpdatedAt = &updated
	s.IsDefault = false
	return nil
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `a.id, a.patient_id, a.dentist_id, a.start_time, a.minutes_duration,
	a.procedure, a.status, a.notes, a.created_at, a.updated_at,
	p.first_name || ' ' || p.last_name, COALESCE(d.name, '')`

const apptFrom = ` FROM appointment a
	JOIN patient p ON p.id = a.patient_id
	LEFT JOIN dentist d ON d.id = a.dentist_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DentistID, &a.StartTime, &a.MinutesDuration,
		&a.Procedure, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.DentistName)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, dentist_id, start_time, minutes_duration,
			procedure, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DentistID, a.StartTime, a.MinutesDuration,
		a.Procedure, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET patient_id=$2, dentist_id=$3, start_time=$4, minutes_duration=$5,
			procedure=$6, status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DentistID, a.StartTime, a.MinutesDuration,
		a.Procedure, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return db.MapNoRows(err)
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.DentistID != nil {
		where += fmt.Sprintf(` AND a.dentist_id = $%d`, idx)
		args = append(args, *f.DentistID)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND a.start_time >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND a.start_time < $%d`, idx)
		args = append(args, *f.To)
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointment a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.start_time NULLS LAST, a.created_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) CountActive(ctx context.Context, dentistID uuid.UUID, from, to time.Time, exclude uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointment
		WHERE dentist_id = $1 AND start_time >= $2 AND start_time < $3
		  AND status <> $4 AND id <> $5`,
		dentistID, from, to, StatusCancelled, exclude).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dentist appointments: %w", err)
	}
	return n, nil
}

func (r *appointmentRepoPG) LockDentistDay(ctx context.Context, dentistID uuid.UUID, day string) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, dentistID.String()+":"+day); err != nil {
		return fmt.Errorf("lock dentist day: %w", err)
	}
	return nil
}

// =========== Queue Repository ===========

type queueRepoPG struct{ pool *pgxpool.Pool }

func NewQueueRepoPG(pool *pgxpool.Pool) QueueRepository { return &queueRepoPG{pool: pool} }

// Linked entries report the appointment's status and dentist.
const queueCols = `q.id, q.patient_id, COALESCE(q.dentist_id, a.dentist_id), q.appointment_id,
	q.source, COALESCE(a.status, q.status), COALESCE(q.procedure, a.procedure), q.notes,
	q.time_added, q.updated_at,
	p.first_name || ' ' || p.last_name, COALESCE(d.name, '')`

const queueFrom = ` FROM queue_entry q
	JOIN patient p ON p.id = q.patient_id
	LEFT JOIN appointment a ON a.id = q.appointment_id
	LEFT JOIN dentist d ON d.id = COALESCE(q.dentist_id, a.dentist_id)`

func scanQueueEntry(row pgx.Row) (*QueueEntry, error) {
	var q QueueEntry
	err := row.Scan(&q.ID, &q.PatientID, &q.DentistID, &q.AppointmentID,
		&q.Source, &q.Status, &q.Procedure, &q.Notes,
		&q.TimeAdded, &q.UpdatedAt,
		&q.PatientName, &q.DentistName)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *queueRepoPG) Create(ctx context.Context, q *QueueEntry) error {
	q.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO queue_entry (id, patient_id, dentist_id, appointment_id, source, status, procedure, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING time_added, updated_at`,
		q.ID, q.PatientID, q.DentistID, q.AppointmentID, q.Source, q.Status, q.Procedure, q.Notes,
	).Scan(&q.TimeAdded, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *queueRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	q, err := scanQueueEntry(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+queueCols+queueFrom+` WHERE q.id = $1`, id))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return q, nil
}

func (r *queueRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*QueueEntry, error) {
	q, err := scanQueueEntry(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+queueCols+queueFrom+` WHERE q.appointment_id = $1 ORDER BY q.time_added DESC LIMIT 1`, appointmentID))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return q, nil
}

func (r *queueRepoPG) Update(ctx context.Context, id uuid.UUID, u QueueUpdate) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE queue_entry SET notes = COALESCE($2, notes), dentist_id = COALESCE($3, dentist_id), updated_at = NOW()
		WHERE id = $1`,
		id, u.Notes, u.DentistID)
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *queueRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE queue_entry SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *queueRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM queue_entry WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *queueRepoPG) ListAdded(ctx context.Context, from, to time.Time) ([]*QueueEntry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+queueCols+queueFrom+` WHERE q.time_added >= $1 AND q.time_added < $2 ORDER BY q.time_added`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	items := []*QueueEntry{}
	for rows.Next() {
		q, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func (r *queueRepoPG) ActiveForPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time) (*QueueEntry, error) {
	q, err := scanQueueEntry(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+queueCols+queueFrom+`
		WHERE q.patient_id = $1 AND q.time_added >= $2 AND q.time_added < $3
		  AND COALESCE(a.status, q.status) NOT IN ($4, $5, $6)
		ORDER BY q.time_added DESC LIMIT 1`,
		patientID, from, to, StatusDone, StatusCancelled, StatusNoShow))
	if err != nil {
		return nil, db.MapNoRows(err)
	}
	return q, nil
}
