// Package address is the read side of the customer address book, used by
// the ordering engine to check that a delivery address belongs to the
// customer placing the order.
package address

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platepilot/ordering/internal/order"
)

type Address struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	Label     string    `json:"label" db:"label"`
	Street    string    `json:"street" db:"street"`
	City      string    `json:"city" db:"city"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Repository struct {
	db *pgxpool.Pool
}

var _ order.AddressReader = (*Repository)(nil)

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetAddress(ctx context.Context, id uuid.UUID) (*Address, error) {
	const query = `
		SELECT id, owner_id, label, street, city, created_at, updated_at
		FROM addresses
		WHERE id = $1
	`

	var a Address
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.OwnerID,
		&a.Label,
		&a.Street,
		&a.City,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: address %s", order.ErrNotFound, id)
		}
		return nil, fmt.Errorf("address: failed to select address %s: %w", id, err)
	}

	return &a, nil
}

// Address implements order.AddressReader.
func (r *Repository) Address(ctx context.Context, id uuid.UUID) (order.AddressInfo, error) {
	a, err := r.GetAddress(ctx, id)
	if err != nil {
		return order.AddressInfo{}, err
	}
	return order.AddressInfo{OwnerID: a.OwnerID}, nil
}
