package inventory

import (
	"net/http"
	"strconv"

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
	read := api.Group("/inventory", auth.RequireAction(perms, auth.ActionInventoryRead))
	read.GET("/items", h.QueryItems)
	read.GET("/items/:id", h.GetItem)
	read.GET("/transactions", h.ListTransactions)
	read.GET("/stats", h.Stats)

	write := api.Group("/inventory", auth.RequireAction(perms, auth.ActionInventoryWrite))
	write.POST("/items", h.CreateItem)
	write.PUT("/items/:id", h.UpdateItem)
	write.DELETE("/items/:id", h.DeactivateItem)
	write.POST("/transactions", h.RecordTransaction)
}

func (h *Handler) CreateItem(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var it Item
	if err := c.Bind(&it); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.CreateItem(c.Request().Context(), p.ClinicID, p.UserID, &it); err != nil {
		return err
	}
	it.StockStatus = it.ComputeStockStatus()
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) GetItem(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	it, err := h.svc.GetItem(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) QueryItems(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	f := Filters{
		Category: c.QueryParam("category"),
		Supplier: c.QueryParam("supplier"),
		Search:   c.QueryParam("q"),
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Validation("invalid active flag")
		}
		f.Active = &active
	}
	if v := c.QueryParam("low_stock"); v != "" {
		low, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Validation("invalid low_stock flag")
		}
		f.LowStock = low
	}
	if v := c.QueryParam("expiring_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return apperr.Validation("invalid expiring_days")
		}
		f.ExpiringDays = days
	}

	items, total, err := h.svc.QueryItems(c.Request().Context(), p.ClinicID, f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var it Item
	if err := c.Bind(&it); err != nil {
		return apperr.Validation("invalid request body")
	}
	it.ID = id
	it.ClinicID = p.ClinicID
	if err := h.svc.UpdateItem(c.Request().Context(), &it); err != nil {
		return err
	}
	it.StockStatus = it.ComputeStockStatus()
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) DeactivateItem(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	if err := h.svc.DeactivateItem(c.Request().Context(), p.ClinicID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordTransaction(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var t Transaction
	if err := c.Bind(&t); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.RecordTransaction(c.Request().Context(), p.ClinicID, p.UserID, &t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	var itemID *uuid.UUID
	if v := c.QueryParam("item_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid item_id")
		}
		itemID = &id
	}
	txns, total, err := h.svc.ListTransactions(c.Request().Context(), p.ClinicID, itemID, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(txns, total, pg))
}

func (h *Handler) Stats(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	st, err := h.svc.Stats(c.Request().Context(), p.ClinicID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
