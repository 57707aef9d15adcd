package reporting

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentaldesk/clinic/internal/platform/httperr"
)

// DentistLoad is one dentist's booked count against the daily cap.
type DentistLoad struct {
	DentistID string `json:"dentist_id"`
	Name      string `json:"name"`
	Booked    int64  `json:"booked"`
	Limit     int    `json:"limit"`
	IsFull    bool   `json:"is_full"`
}

// DailyReport summarises one clinic day.
type DailyReport struct {
	Date                 string           `json:"date"`
	GeneratedAt          time.Time        `json:"generated_at"`
	TotalAppointments    int64            `json:"total_appointments"`
	AppointmentsByStatus map[string]int64 `json:"appointments_by_status"`
	Dentists             []DentistLoad    `json:"dentists"`
	WalkIns              int64            `json:"walk_ins"`
	QueueByStatus        map[string]int64 `json:"queue_by_status"`
	NewPatients          int64            `json:"new_patients"`
}

type Service struct {
	src    Source
	limit  int
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(src Source, dailyLimit int) *Service {
	return &Service{src: src, limit: dailyLimit, loc: time.Local, now: time.Now, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock sets the clinic calendar and the time source.
func (s *Service) SetClock(loc *time.Location, now func() time.Time) {
	if loc != nil {
		s.loc = loc
	}
	if now != nil {
		s.now = now
	}
}

// window resolves "YYYY-MM-DD" ("" for today) to the clinic-local day.
func (s *Service) window(date string) (time.Time, time.Time, string, error) {
	var d time.Time
	if strings.TrimSpace(date) == "" {
		d = s.now().In(s.loc)
	} else {
		var err error
		d, err = time.ParseInLocation("2006-01-02", date, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, "", httperr.Invalid("date must be YYYY-MM-DD")
		}
	}
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1), from.Format("2006-01-02"), nil
}

// Evaluate runs one measure for the given day.
func (s *Service) Evaluate(ctx context.Context, m *MeasureDefinition, date string) ([]map[string]interface{}, string, error) {
	from, to, day, err := s.window(date)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.src.Evaluate(ctx, m, from, to)
	if err != nil {
		logQueryFailure(s.logger, m.ID, err)
		return nil, "", err
	}
	return rows, day, nil
}

func (s *Service) Daily(ctx context.Context, date string) (*DailyReport, error) {
	from, to, day, err := s.window(date)
	if err != nil {
		return nil, err
	}
	results := make(map[string][]map[string]interface{}, len(PredefinedMeasures))
	for i := range PredefinedMeasures {
		m := &PredefinedMeasures[i]
		rows, err := s.src.Evaluate(ctx, m, from, to)
		if err != nil {
			logQueryFailure(s.logger, m.ID, err)
			return nil, err
		}
		results[m.ID] = rows
	}

	report := &DailyReport{
		Date:                 day,
		GeneratedAt:          s.now().UTC(),
		AppointmentsByStatus: groupCounts(results[MeasureAppointmentsByStatus]),
		QueueByStatus:        groupCounts(results[MeasureQueueByStatus]),
		WalkIns:              singleCount(results[MeasureWalkIns]),
		NewPatients:          singleCount(results[MeasureNewPatients]),
		Dentists:             []DentistLoad{},
	}
	for _, n := range report.AppointmentsByStatus {
		report.TotalAppointments += n
	}
	for _, row := range results[MeasureDentistLoad] {
		booked := toInt64(row["booked"])
		report.Dentists = append(report.Dentists, DentistLoad{
			DentistID: toString(row["dentist_id"]),
			Name:      toString(row["dentist_name"]),
			Booked:    booked,
			Limit:     s.limit,
			IsFull:    s.limit > 0 && booked >= int64(s.limit),
		})
	}
	return report, nil
}

// groupCounts folds (status, total) rows into a map.
func groupCounts(rows []map[string]interface{}) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[toString(row["status"])] += toInt64(row["total"])
	}
	return out
}

func singleCount(rows []map[string]interface{}) int64 {
	if len(rows) == 0 {
		return 0
	}
	return toInt64(rows[0]["total"])
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
