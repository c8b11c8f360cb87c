package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platepilot/ordering/internal/order"
)

// Repository reads menu items and add-ons from Postgres and adapts them to
// the ordering engine's CatalogReader port.
type Repository struct {
	db *pgxpool.Pool
}

var _ order.CatalogReader = (*Repository)(nil)

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetMenuItem(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	const query = `
		SELECT id, category_id, name, description, price, is_available, created_at, updated_at
		FROM menu_items
		WHERE id = $1
	`

	var item MenuItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.CategoryID,
		&item.Name,
		&item.Description,
		&item.Price,
		&item.IsAvailable,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: menu item %s", order.ErrNotFound, id)
		}
		return nil, fmt.Errorf("catalog: failed to select menu item %s: %w", id, err)
	}

	return &item, nil
}

func (r *Repository) GetAddon(ctx context.Context, id uuid.UUID) (*Addon, error) {
	const query = `
		SELECT id, name, price, is_active, created_at, updated_at
		FROM addons
		WHERE id = $1
	`

	var addon Addon
	err := r.db.QueryRow(ctx, query, id).Scan(
		&addon.ID,
		&addon.Name,
		&addon.Price,
		&addon.IsActive,
		&addon.CreatedAt,
		&addon.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: add-on %s", order.ErrNotFound, id)
		}
		return nil, fmt.Errorf("catalog: failed to select add-on %s: %w", id, err)
	}

	return &addon, nil
}

// MenuItem implements order.CatalogReader.
func (r *Repository) MenuItem(ctx context.Context, id uuid.UUID) (order.MenuItemInfo, error) {
	item, err := r.GetMenuItem(ctx, id)
	if err != nil {
		return order.MenuItemInfo{}, err
	}
	return order.MenuItemInfo{Price: item.Price, Available: item.IsAvailable}, nil
}

// Addon implements order.CatalogReader.
func (r *Repository) Addon(ctx context.Context, id uuid.UUID) (order.AddonInfo, error) {
	addon, err := r.GetAddon(ctx, id)
	if err != nil {
		return order.AddonInfo{}, err
	}
	return order.AddonInfo{Price: addon.Price, Active: addon.IsActive}, nil
}
