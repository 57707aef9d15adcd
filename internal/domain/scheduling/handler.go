package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/clinic/internal/platform/auth"
	"github.com/dentaldesk/clinic/internal/platform/db"
	"github.com/dentaldesk/clinic/internal/platform/httperr"
	"github.com/dentaldesk/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints: all clinic staff
	readGroup := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist, auth.RoleAssistant))
	readGroup.GET("/dentists/:id/schedule", h.GetSchedule)
	readGroup.GET("/dentists/:id/slots", h.ListSlots)
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/conflicts", h.ListConflicts)
	readGroup.GET("/appointments/limit", h.CheckLimit)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/queue", h.ListQueue)
	readGroup.GET("/queue/status", h.QueueStatus)
	readGroup.GET("/queue/:id", h.GetQueueEntry)

	// Chair-side status changes: all clinic staff
	readGroup.PUT("/queue/:id", h.UpdateQueueEntry)

	// Front desk
	frontDesk := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	frontDesk.POST("/appointments", h.CreateAppointment)
	frontDesk.PUT("/appointments/:id", h.UpdateAppointment)
	frontDesk.DELETE("/appointments/:id", h.DeleteAppointment)
	frontDesk.POST("/appointments/:id/check-in", h.CheckIn)
	frontDesk.POST("/bookings", h.Book)
	frontDesk.POST("/queue", h.AddWalkIn)
	frontDesk.DELETE("/queue/:id", h.DeleteQueueEntry)

	// Calendars: the dentist or the front desk
	calendar := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist))
	calendar.PUT("/dentists/:id/schedule", h.UpdateSchedule)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// -- Schedule Handlers --

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cal Calendar
	if err := c.Bind(&cal); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&cal); err != nil {
		return err
	}
	s := &Schedule{DentistID: id, Calendar: cal}
	if err := h.svc.UpdateSchedule(c.Request().Context(), s); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, s)
}

// ListSlots serves ?date=YYYY-MM-DD (default today) and ?exclude=<appointment id>.
func (h *Handler) ListSlots(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	exclude, err := optionalUUID(c, "exclude")
	if err != nil {
		return err
	}
	excludeID := uuid.Nil
	if exclude != nil {
		excludeID = *exclude
	}
	slots, err := h.svc.Slots(c.Request().Context(), id, c.QueryParam("date"), excludeID)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, slots)
}

// -- Appointment Handlers --

// appointmentBody accepts either start_time (RFC 3339) or a date plus a
// clock time on the clinic calendar.
type appointmentBody struct {
	Appointment
	Date string `json:"date,omitempty" validate:"omitempty,date"`
	Time string `json:"time,omitempty" validate:"omitempty,clock"`
}

func (h *Handler) resolveStart(body *appointmentBody) error {
	if body.Date == "" && body.Time == "" {
		return nil
	}
	if body.Date == "" || body.Time == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date and time must be given together")
	}
	start, err := h.svc.StartAt(body.Date, body.Time)
	if err != nil {
		return httperr.From(err)
	}
	body.StartTime = start
	return nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var body appointmentBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&body); err != nil {
		return err
	}
	if err := h.resolveStart(&body); err != nil {
		return err
	}
	a := &body.Appointment
	if err := h.svc.CreateAppointment(c.Request().Context(), a); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListAppointments filters by ?dentist_id=, ?patient_id=, ?status= and ?date=.
func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	var (
		f   AppointmentFilter
		err error
	)
	if f.DentistID, err = optionalUUID(c, "dentist_id"); err != nil {
		return err
	}
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	f.Status = c.QueryParam("status")

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, c.QueryParam("date"), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	existing, err := h.svc.GetAppointment(ctx, id)
	if err != nil {
		return httperr.From(err)
	}
	body := appointmentBody{Appointment: *existing}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body.ID = id
	if err := c.Validate(&body); err != nil {
		return err
	}
	if err := h.resolveStart(&body); err != nil {
		return err
	}
	a := &body.Appointment
	if err := h.svc.UpdateAppointment(ctx, a); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListConflicts(c echo.Context) error {
	conflicts, err := h.svc.Conflicts(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, conflicts)
}

func (h *Handler) CheckLimit(c echo.Context) error {
	dentistID, err := optionalUUID(c, "dentist_id")
	if err != nil {
		return err
	}
	if dentistID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dentist_id is required")
	}
	status, err := h.svc.CheckLimit(c.Request().Context(), *dentistID, c.QueryParam("date"))
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entry, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

type bookingBody struct {
	BookingRequest
	Date string `json:"date,omitempty" validate:"omitempty,date"`
	Time string `json:"time,omitempty" validate:"omitempty,clock"`
}

// Book creates a patient (optional) and an appointment atomically.
func (h *Handler) Book(c echo.Context) error {
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Patient == nil && body.Appointment.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment.patient_id or patient is required")
	}
	if body.Patient != nil {
		if err := c.Validate(body.Patient); err != nil {
			return err
		}
	}
	apptBody := appointmentBody{Appointment: body.Appointment, Date: body.Date, Time: body.Time}
	if err := h.resolveStart(&apptBody); err != nil {
		return err
	}
	body.Appointment = apptBody.Appointment

	a, err := h.svc.Book(c.Request().Context(), &body.BookingRequest)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"patient_id":  a.PatientID,
		"appointment": a,
	})
}

// -- Queue Handlers --

func (h *Handler) ListQueue(c echo.Context) error {
	entries, err := h.svc.ListQueue(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) GetQueueEntry(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	q, err := h.svc.GetQueueEntry(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, q)
}

// QueueStatus reports whether ?patient_id= is in today's queue.
func (h *Handler) QueueStatus(c echo.Context) error {
	patientID, err := optionalUUID(c, "patient_id")
	if err != nil {
		return err
	}
	if patientID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	entry, err := h.svc.QueueStatus(c.Request().Context(), *patientID)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusOK, map[string]interface{}{"in_queue": false})
	}
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"in_queue": true, "entry": entry})
}

func (h *Handler) AddWalkIn(c echo.Context) error {
	var req WalkInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Patient != nil {
		if err := c.Validate(req.Patient); err != nil {
			return err
		}
	}
	entry, err := h.svc.AddWalkIn(c.Request().Context(), &req)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) UpdateQueueEntry(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var u QueueUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.svc.UpdateQueueEntry(c.Request().Context(), id, u)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) DeleteQueueEntry(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteQueueEntry(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}
