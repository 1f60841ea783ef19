package patient

import (
	"net/http"

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
	read := api.Group("/patients", auth.RequireAction(perms, auth.ActionPatientRead))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/patients", auth.RequireAction(perms, auth.ActionPatientWrite))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Deactivate)
}

func (h *Handler) Create(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var pat Patient
	if err := c.Bind(&pat); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), p.ClinicID, &pat); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pat)
}

func (h *Handler) Get(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	pat, err := h.svc.Get(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pat)
}

func (h *Handler) List(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p.ClinicID, c.QueryParam("q"), pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var pat Patient
	if err := c.Bind(&pat); err != nil {
		return apperr.Validation("invalid request body")
	}
	pat.ID = id
	pat.ClinicID = p.ClinicID
	if err := h.svc.Update(c.Request().Context(), &pat); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pat)
}

func (h *Handler) Deactivate(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), p.ClinicID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
