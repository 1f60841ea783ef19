package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is the tenant root. Every other entity carries its clinic_id and is
// filtered by it on every read and write.
type Clinic struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	SubscriptionPlan string    `db:"subscription_plan" json:"subscription_plan"`
	Status           string    `db:"status" json:"status"`
	GSTIN            *string   `db:"gstin" json:"gstin,omitempty"`
	// Operating window, "HH:MM" 24h clock. Used by slot computation.
	OpeningTime  string    `db:"opening_time" json:"opening_time"`
	ClosingTime  string    `db:"closing_time" json:"closing_time"`
	AddressLine1 *string   `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2 *string   `db:"address_line2" json:"address_line2,omitempty"`
	City         *string   `db:"city" json:"city,omitempty"`
	State        *string   `db:"state" json:"state,omitempty"`
	PostalCode   *string   `db:"postal_code" json:"postal_code,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// IsActive reports whether the clinic accepts operations.
func (c *Clinic) IsActive() bool { return c.Status == StatusActive }
