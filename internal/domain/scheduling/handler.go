package scheduling

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, perms auth.PermissionTable) {
	read := api.Group("/appointments", auth.RequireAction(perms, auth.ActionAppointmentRead))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/slots", h.AvailableSlots)
	read.GET("/queue", h.Queue)

	write := api.Group("/appointments", auth.RequireAction(perms, auth.ActionAppointmentWrite))
	write.POST("", h.Create)
	write.POST("/:id/confirm", h.Confirm)
	write.POST("/:id/complete", h.Complete)
	write.POST("/:id/cancel", h.Cancel)
	write.POST("/:id/no-show", h.MarkNoShow)
	write.POST("/:id/reschedule", h.Reschedule)
	write.PUT("/:id/queue-position", h.UpdateQueuePosition)
}

func (h *Handler) Create(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), p.ClinicID, &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	var f ListFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid doctor_id")
		}
		f.DoctorID = &id
	}
	f.Status = c.QueryParam("status")
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return apperr.Validation("invalid date, want YYYY-MM-DD")
		}
		f.Date = &d
	}

	appts, total, err := h.svc.List(c.Request().Context(), p.ClinicID, f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg))
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, h.svc.Confirm)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.transition(c, h.svc.MarkNoShow)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	a, err := fn(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) Cancel(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Cancel(c.Request().Context(), p.ClinicID, id, p.UserID, p.Role, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    *string   `json:"reason,omitempty"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Reschedule(c.Request().Context(), p.ClinicID, id, p.UserID,
		req.StartTime, req.EndTime, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return apperr.Validation("invalid doctor_id")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return apperr.Validation("invalid date, want YYYY-MM-DD")
	}
	duration := 30 * time.Minute
	if v := c.QueryParam("duration_minutes"); v != "" {
		d, err := time.ParseDuration(v + "m")
		if err != nil || d <= 0 {
			return apperr.Validation("invalid duration_minutes")
		}
		duration = d
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), p.ClinicID, doctorID, date, duration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) Queue(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return apperr.Validation("invalid doctor_id")
	}
	date := time.Now()
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return apperr.Validation("invalid date, want YYYY-MM-DD")
		}
		date = d
	}
	appts, err := h.svc.Queue(c.Request().Context(), p.ClinicID, doctorID, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appts)
}

type queuePositionRequest struct {
	Position int `json:"position"`
}

func (h *Handler) UpdateQueuePosition(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var req queuePositionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.UpdateQueuePosition(c.Request().Context(), p.ClinicID, id, req.Position)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
