package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Role string

const (
	RoleCustomer      Role = "customer"
	RoleAdministrator Role = "administrator"
)

// Caller is the authenticated identity attached to a request by the
// upstream gateway. The engine authorizes with it, never authenticates.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdministrator
}

// AddonSelection is one chosen add-on on an order line. UnitPrice is the
// add-on's catalog price snapshotted at order creation.
type AddonSelection struct {
	AddonID   uuid.UUID       `json:"addon_id" db:"addon_id"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

type Line struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	OrderID    uuid.UUID        `json:"order_id" db:"order_id"`
	MenuItemID uuid.UUID        `json:"menu_item_id" db:"menu_item_id"`
	Quantity   int              `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal  `json:"unit_price" db:"unit_price"`
	Notes      string           `json:"notes,omitempty" db:"notes"`
	Addons     []AddonSelection `json:"addons" db:"-"`
}

// Order is a placed purchase request. Line contents and TotalAmount are
// fixed at creation; only Status, Version and UpdatedAt mutate afterwards.
type Order struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OwnerID       uuid.UUID       `json:"owner_id" db:"owner_id"`
	AddressID     uuid.UUID       `json:"address_id" db:"address_id"`
	Status        Status          `json:"status" db:"status"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	DeliveryType  string          `json:"delivery_type" db:"delivery_type"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	Version       int             `json:"version" db:"version"`
	Lines         []Line          `json:"lines" db:"-"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
