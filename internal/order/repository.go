package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Query restricts a repository order listing. Zero-value fields are
// ignored; results are always newest-first by created_at.
type Query struct {
	OwnerID uuid.UUID
	Status  Status
}

// Repository is the Order Store: the only durable, mutable resource of the
// engine. Create is atomic over order, lines and add-on selections;
// UpdateStatus is a compare-and-set on the order's version counter.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status, expectedVersion int) (*Order, error)
	Query(ctx context.Context, q Query) ([]Order, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create inserts the order with all its lines and add-on selections in a
// single transaction. Ids and timestamps are assigned here; any failure
// rolls the whole write back so no partial order ever persists.
func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	orderID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate order id: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback create-order transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()

	const insertOrder = `
		INSERT INTO orders (id, owner_id, address_id, status, payment_method, delivery_type, notes, total_amount, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, insertOrder,
		orderID,
		o.OwnerID,
		o.AddressID,
		string(o.Status),
		o.PaymentMethod,
		o.DeliveryType,
		o.Notes,
		o.TotalAmount,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	const insertLine = `
		INSERT INTO order_lines (id, order_id, position, menu_item_id, quantity, unit_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	const insertAddon = `
		INSERT INTO order_line_addons (order_line_id, addon_id, unit_price)
		VALUES ($1, $2, $3)
	`
	for i := range o.Lines {
		line := &o.Lines[i]

		lineID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order line id: %w", genErr)
		}

		_, err = tx.Exec(ctx, insertLine,
			lineID,
			orderID,
			i,
			line.MenuItemID,
			line.Quantity,
			line.UnitPrice,
			line.Notes,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order line for order %s: %w", orderID, err)
		}
		line.ID = lineID
		line.OrderID = orderID

		for _, addon := range line.Addons {
			_, err = tx.Exec(ctx, insertAddon, lineID, addon.AddonID, addon.UnitPrice)
			if err != nil {
				return fmt.Errorf("repository: failed to insert add-on selection for line %s: %w", lineID, err)
			}
		}
	}

	o.ID = orderID
	o.Version = 1
	o.CreatedAt = now
	o.UpdatedAt = now

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	const query = `
		SELECT id, owner_id, address_id, status, payment_method, delivery_type, notes, total_amount, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.OwnerID,
		&o.AddressID,
		&o.Status,
		&o.PaymentMethod,
		&o.DeliveryType,
		&o.Notes,
		&o.TotalAmount,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", id, err)
	}

	lines, err := r.loadLines(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[id]

	return &o, nil
}

// UpdateStatus applies a compare-and-set status change: the row is only
// updated when its version still matches expectedVersion. A vanished row
// maps to ErrNotFound; a stale version maps to ErrConflict so the caller
// can re-read and retry.
func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status, expectedVersion int) (*Order, error) {
	const query = `
		UPDATE orders
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`

	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update status of order %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Distinguish a missing order from a lost version race.
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		log.Warn().
			Stringer("order_id", id).
			Int("expected_version", expectedVersion).
			Int("current_version", current.Version).
			Msg("repository: status update lost a concurrent race")
		return nil, fmt.Errorf("%w: order %s was modified concurrently", ErrConflict, id)
	}

	return r.GetByID(ctx, id)
}

func (r *postgresRepository) Query(ctx context.Context, q Query) ([]Order, error) {
	query := `
		SELECT id, owner_id, address_id, status, payment_method, delivery_type, notes, total_amount, version, created_at, updated_at
		FROM orders
	`
	var (
		conds []string
		args  []any
	)
	if q.OwnerID != uuid.Nil {
		args = append(args, q.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersByID := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.OwnerID,
			&o.AddressID,
			&o.Status,
			&o.PaymentMethod,
			&o.DeliveryType,
			&o.Notes,
			&o.TotalAmount,
			&o.Version,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Lines = make([]Line, 0)
		ordersByID[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	linesByOrder, err := r.loadLines(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for id, lines := range linesByOrder {
		if o, ok := ordersByID[id]; ok {
			o.Lines = lines
		}
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersByID[id])
	}
	return result, nil
}

// loadLines hydrates lines and add-on selections for the given orders in
// two batched queries, preserving per-order line insertion order.
func (r *postgresRepository) loadLines(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	const lineQuery = `
		SELECT id, order_id, menu_item_id, quantity, unit_price, notes
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := r.db.Query(ctx, lineQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	linesByOrder := make(map[uuid.UUID][]Line)
	var lineIDs []uuid.UUID

	for rows.Next() {
		var line Line
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.MenuItemID,
			&line.Quantity,
			&line.UnitPrice,
			&line.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		line.Addons = make([]AddonSelection, 0)
		linesByOrder[line.OrderID] = append(linesByOrder[line.OrderID], line)
		lineIDs = append(lineIDs, line.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order lines: %w", err)
	}

	if len(lineIDs) == 0 {
		return linesByOrder, nil
	}

	const addonQuery = `
		SELECT order_line_id, addon_id, unit_price
		FROM order_line_addons
		WHERE order_line_id = ANY($1)
	`

	addonRows, err := r.db.Query(ctx, addonQuery, lineIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query add-on selections: %w", err)
	}
	defer addonRows.Close()

	addonsByLine := make(map[uuid.UUID][]AddonSelection)
	for addonRows.Next() {
		var (
			lineID uuid.UUID
			sel    AddonSelection
		)
		if err := addonRows.Scan(&lineID, &sel.AddonID, &sel.UnitPrice); err != nil {
			return nil, fmt.Errorf("repository: failed to scan add-on selection: %w", err)
		}
		addonsByLine[lineID] = append(addonsByLine[lineID], sel)
	}
	if err = addonRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating add-on selections: %w", err)
	}

	for orderID, lines := range linesByOrder {
		for i := range lines {
			if addons, ok := addonsByLine[lines[i].ID]; ok {
				lines[i].Addons = addons
			}
		}
		linesByOrder[orderID] = lines
	}

	return linesByOrder, nil
}
