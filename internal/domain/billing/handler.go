package billing

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
	read := api.Group("/billing", auth.RequireAction(perms, auth.ActionBillingRead))
	read.GET("/invoices", h.ListInvoices)
	read.GET("/invoices/:id", h.GetInvoice)
	read.GET("/payments", h.ListPayments)
	read.GET("/payments/:id", h.GetPayment)
	read.GET("/payments/:id/receipt", h.GetReceipt)
	read.GET("/receipts", h.ListReceipts)
	read.GET("/bank-accounts", h.ListBankAccounts)

	reports := api.Group("/billing", auth.RequireAction(perms, auth.ActionReportsRead))
	reports.GET("/gst-report", h.GSTReport)

	write := api.Group("/billing", auth.RequireAction(perms, auth.ActionBillingWrite))
	write.POST("/invoices", h.CreateInvoice)
	write.POST("/payments", h.ProcessPayment)
	write.POST("/bank-accounts", h.CreateBankAccount)
	write.POST("/bank-accounts/:id/default", h.SetDefaultBankAccount)
	write.DELETE("/bank-accounts/:id", h.DeleteBankAccount)
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.CreateInvoice(c.Request().Context(), p.ClinicID, &inv); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid patient_id")
		}
		patientID = &id
	}
	status := c.QueryParam("status")

	invs, total, err := h.svc.ListInvoices(c.Request().Context(), p.ClinicID, patientID, status, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invs, total, pg))
}

func (h *Handler) ProcessPayment(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var pay Payment
	if err := c.Bind(&pay); err != nil {
		return apperr.Validation("invalid request body")
	}
	pay.ReceivedBy = p.UserID
	out, err := h.svc.ProcessPayment(c.Request().Context(), p.ClinicID, &pay)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) GetPayment(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	pay, err := h.svc.GetPayment(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pay)
}

func paymentFilterFromQuery(c echo.Context) (PaymentFilter, error) {
	var f PaymentFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("invoice_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("invalid invoice_id")
		}
		f.InvoiceID = &id
	}
	f.Method = c.QueryParam("method")
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, apperr.Validation("invalid from, want YYYY-MM-DD")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, apperr.Validation("invalid to, want YYYY-MM-DD")
		}
		end := t.Add(24 * time.Hour)
		f.To = &end
	}
	return f, nil
}

func (h *Handler) ListPayments(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	f, err := paymentFilterFromQuery(c)
	if err != nil {
		return err
	}
	payments, total, err := h.svc.ListPayments(c.Request().Context(), p.ClinicID, f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(payments, total, pg))
}

func (h *Handler) GetReceipt(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	rc, err := h.svc.GetReceiptForPayment(c.Request().Context(), p.ClinicID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rc)
}

func (h *Handler) ListReceipts(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	f, err := paymentFilterFromQuery(c)
	if err != nil {
		return err
	}
	receipts, total, err := h.svc.ListReceipts(c.Request().Context(), p.ClinicID, f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(receipts, total, pg))
}

func (h *Handler) GSTReport(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return apperr.Validation("invalid from, want YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return apperr.Validation("invalid to, want YYYY-MM-DD")
	}
	rep, err := h.svc.GenerateGSTReport(c.Request().Context(), p.ClinicID, from, to.Add(24*time.Hour))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) CreateBankAccount(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	var b BankAccount
	if err := c.Bind(&b); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.CreateBankAccount(c.Request().Context(), p.ClinicID, &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBankAccounts(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	accounts, err := h.svc.ListBankAccounts(c.Request().Context(), p.ClinicID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accounts)
}

func (h *Handler) SetDefaultBankAccount(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	if err := h.svc.SetDefaultBankAccount(c.Request().Context(), p.ClinicID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteBankAccount(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	if err := h.svc.DeleteBankAccount(c.Request().Context(), p.ClinicID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
