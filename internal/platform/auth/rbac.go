package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role is a staff or patient role within a clinic.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleReceptionist  Role = "receptionist"
	RolePatient       Role = "patient"
	RoleStaff         Role = "staff"
	RoleNurse         Role = "nurse"
	RoleLabTechnician Role = "lab_technician"
	RolePharmacist    Role = "pharmacist"
)

// Action is a permission-checked operation.
type Action string

const (
	ActionClinicManage     Action = "clinic:manage"
	ActionStaffManage      Action = "staff:manage"
	ActionPatientRead      Action = "patient:read"
	ActionPatientWrite     Action = "patient:write"
	ActionInventoryRead    Action = "inventory:read"
	ActionInventoryWrite   Action = "inventory:write"
	ActionProcedureRead    Action = "procedure:read"
	ActionProcedureWrite   Action = "procedure:write"
	ActionAppointmentRead  Action = "appointment:read"
	ActionAppointmentWrite Action = "appointment:write"
	ActionBillingRead      Action = "billing:read"
	ActionBillingWrite     Action = "billing:write"
	ActionNotificationSend Action = "notification:send"
	ActionReportsRead      Action = "reports:read"
)

// PermissionTable maps Role × Action → allowed. It is static data, evaluated
// once per request, and injectable so tests can substitute their own.
type PermissionTable map[Role]map[Action]bool

// DefaultPermissions is the standing permission table. Admin is granted
// everything by Allowed regardless of table contents.
var DefaultPermissions = PermissionTable{
	RoleDoctor: {
		ActionPatientRead:      true,
		ActionPatientWrite:     true,
		ActionInventoryRead:    true,
		ActionProcedureRead:    true,
		ActionProcedureWrite:   true,
		ActionAppointmentRead:  true,
		ActionAppointmentWrite: true,
		ActionBillingRead:      true,
		ActionReportsRead:      true,
	},
	RoleReceptionist: {
		ActionPatientRead:      true,
		ActionPatientWrite:     true,
		ActionAppointmentRead:  true,
		ActionAppointmentWrite: true,
		ActionBillingRead:      true,
		ActionBillingWrite:     true,
		ActionNotificationSend: true,
	},
	RoleNurse: {
		ActionPatientRead:     true,
		ActionInventoryRead:   true,
		ActionProcedureRead:   true,
		ActionAppointmentRead: true,
	},
	RoleStaff: {
		ActionInventoryRead:  true,
		ActionInventoryWrite: true,
	},
	RolePharmacist: {
		ActionInventoryRead:  true,
		ActionInventoryWrite: true,
	},
	RoleLabTechnician: {
		ActionPatientRead:   true,
		ActionProcedureRead: true,
	},
	RolePatient: {
		ActionAppointmentRead: true,
	},
}

// Allowed reports whether role may perform action.
func (t PermissionTable) Allowed(role Role, action Action) bool {
	if role == RoleAdmin {
		return true
	}
	return t[role][action]
}

// RequireAction returns middleware that rejects requests whose principal's
// role is not granted the action in the table.
func RequireAction(table PermissionTable, action Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if !table.Allowed(p.Role, action) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("role %q may not perform %q", p.Role, action))
			}
			return next(c)
		}
	}
}
