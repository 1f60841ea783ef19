package procedure

import (
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
	read := api.Group("/procedures", auth.RequireAction(perms, auth.ActionProcedureRead))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/common-items", h.CommonItems)

	write := api.Group("/procedures", auth.RequireAction(perms, auth.ActionProcedureWrite))
	write.POST("", h.Create)
	write.PUT("/:id/status", h.UpdateStatus)
	write.POST("/:id/items", h.AddItems)

	reports := api.Group("/reports", auth.RequireAction(perms, auth.ActionReportsRead))
	reports.GET("/inventory-usage", h.UsageReport)
	reports.GET("/inventory-usage/trend", h.UsageTrend)
}

type createRequest struct {
	DentalProcedure
	ItemRequests []ItemRequest `json:"item_requests"`
}

func (h *Handler) Create(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), p.ClinicID, p.UserID, &req.DentalProcedure, req.ItemRequests); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, req.DentalProcedure)
}

func (h *Handler) Get(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	proc, err := h.svc.Get(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, proc)
}

func (h *Handler) List(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	var patientID, dentistID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid patient_id")
		}
		patientID = &id
	}
	if v := c.QueryParam("dentist_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid dentist_id")
		}
		dentistID = &id
	}

	procs, total, err := h.svc.List(c.Request().Context(), p.ClinicID, patientID, dentistID, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(procs, total, pg))
}

type statusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	proc, err := h.svc.UpdateStatus(c.Request().Context(), p.ClinicID, id, req.Status, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, proc)
}

type addItemsRequest struct {
	ItemRequests []ItemRequest `json:"item_requests"`
}

func (h *Handler) AddItems(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var req addItemsRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if len(req.ItemRequests) == 0 {
		return apperr.Validation("item_requests is required")
	}
	proc, err := h.svc.AddItems(c.Request().Context(), p.ClinicID, p.UserID, id, req.ItemRequests)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, proc)
}

func (h *Handler) UsageReport(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return apperr.Validation("invalid from date, want YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return apperr.Validation("invalid to date, want YYYY-MM-DD")
	}
	rep, err := h.svc.GenerateUsageReport(c.Request().Context(), p.ClinicID,
		from, to.Add(24*time.Hour), c.QueryParam("category"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) UsageTrend(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	period := c.QueryParam("period")
	if period == "" {
		period = "month"
	}
	rep, err := h.svc.GenerateUsageTrend(c.Request().Context(), p.ClinicID, period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) CommonItems(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	items, err := h.svc.CommonItems(c.Request().Context(), p.ClinicID, c.QueryParam("category"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
