package charting

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/clinic/internal/platform/auth"
	"github.com/dentaldesk/clinic/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints: all clinic staff
	read := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleReceptionist, auth.RoleAssistant))
	read.GET("/tooth-conditions/:patientId", h.ToothChart)
	read.GET("/treatment-timeline/:patientId", h.Timeline)
	read.GET("/medications/:patientId", h.Medications)
	read.GET("/annual-records/:patientId/:year", h.GetAnnualRecord)

	// Clinical writes: chair-side staff
	clinical := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleAssistant))
	clinical.POST("/tooth-conditions", h.UpsertToothCondition)
	clinical.POST("/treatment-timeline", h.AddTreatment)
	clinical.DELETE("/treatment-timeline/:id", h.DeleteTreatment)
	clinical.POST("/medications", h.AddMedication)
	clinical.DELETE("/medications/:id", h.DeleteMedication)
	clinical.POST("/annual-records", h.SaveAnnualRecord)
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// yearQuery reads ?year=; absent means the current year.
func yearQuery(c echo.Context) (int, error) {
	v := c.QueryParam("year")
	if v == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid year")
	}
	return y, nil
}

// patientYear parses the :patientId path param and ?year= together.
func patientYear(c echo.Context) (uuid.UUID, int, error) {
	patientID, err := parseUUIDParam(c, "patientId")
	if err != nil {
		return uuid.Nil, 0, err
	}
	year, err := yearQuery(c)
	if err != nil {
		return uuid.Nil, 0, err
	}
	return patientID, year, nil
}

func bindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Validate(v)
}

// -- Tooth Condition Handlers --

func (h *Handler) ToothChart(c echo.Context) error {
	patientID, year, err := patientYear(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ToothChart(c.Request().Context(), patientID, year)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpsertToothCondition(c echo.Context) error {
	var tc ToothCondition
	if err := bindAndValidate(c, &tc); err != nil {
		return err
	}
	if err := h.svc.UpsertToothCondition(c.Request().Context(), &tc); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, tc)
}

// -- Timeline Handlers --

func (h *Handler) Timeline(c echo.Context) error {
	patientID, year, err := patientYear(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Timeline(c.Request().Context(), patientID, year)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddTreatment(c echo.Context) error {
	var e TreatmentEntry
	if err := bindAndValidate(c, &e); err != nil {
		return err
	}
	if err := h.svc.AddTreatment(c.Request().Context(), &e); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) DeleteTreatment(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTreatment(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Medication Handlers --

func (h *Handler) Medications(c echo.Context) error {
	patientID, year, err := patientYear(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Medications(c.Request().Context(), patientID, year)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddMedication(c echo.Context) error {
	var m Medication
	if err := bindAndValidate(c, &m); err != nil {
		return err
	}
	if err := h.svc.AddMedication(c.Request().Context(), &m); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Annual Record Handlers --

func (h *Handler) GetAnnualRecord(c echo.Context) error {
	patientID, err := parseUUIDParam(c, "patientId")
	if err != nil {
		return err
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
	}
	rec, err := h.svc.AnnualRecord(c.Request().Context(), patientID, year)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) SaveAnnualRecord(c echo.Context) error {
	var rec AnnualRecord
	if err := bindAndValidate(c, &rec); err != nil {
		return err
	}
	if err := h.svc.SaveAnnualRecord(c.Request().Context(), &rec); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rec)
}
