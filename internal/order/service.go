package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MenuItemInfo is what the catalog exposes about a menu item to the
// ordering engine: current price and whether it can be ordered right now.
type MenuItemInfo struct {
	Price     decimal.Decimal
	Available bool
}

// AddonInfo is the catalog's view of an add-on.
type AddonInfo struct {
	Price  decimal.Decimal
	Active bool
}

// AddressInfo is the address book's view of a delivery address.
type AddressInfo struct {
	OwnerID uuid.UUID
}

// CatalogReader supplies current menu-item and add-on data by id.
// Implementations return ErrNotFound for unknown ids.
type CatalogReader interface {
	MenuItem(ctx context.Context, id uuid.UUID) (MenuItemInfo, error)
	Addon(ctx context.Context, id uuid.UUID) (AddonInfo, error)
}

// AddressReader resolves a delivery address and its owning identity.
type AddressReader interface {
	Address(ctx context.Context, id uuid.UUID) (AddressInfo, error)
}

// EventPublisher receives order lifecycle notifications. Publishing is
// fire-and-forget: implementations must not fail the calling operation.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderStatusChanged(ctx context.Context, o *Order, previous Status)
}

// RequestedLine is one line of a create-order request before catalog
// resolution.
type RequestedLine struct {
	MenuItemID uuid.UUID
	Quantity   int
	Notes      string
	AddonIDs   []uuid.UUID
}

type CreateOrderInput struct {
	OwnerID       uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod string
	DeliveryType  string
	Notes         string
	Lines         []RequestedLine
}

// ListFilter restricts a list-orders query; zero value means no filter.
type ListFilter struct {
	Status Status
}

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, caller Caller) (*Order, error)
	ListOrders(ctx context.Context, caller Caller, filter ListFilter) ([]Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, caller Caller) (*Order, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, newStatus Status, caller Caller) (*Order, error)
}

type service struct {
	repo      Repository
	catalog   CatalogReader
	addresses AddressReader
	events    EventPublisher
}

func NewService(repo Repository, catalog CatalogReader, addresses AddressReader, events EventPublisher) Service {
	return &service{
		repo:      repo,
		catalog:   catalog,
		addresses: addresses,
		events:    events,
	}
}

// CreateOrder resolves everything before writing anything: address
// ownership, then every menu item and add-on (snapshotting unit prices),
// then the total, and only then one atomic persistence write. A failure at
// any step leaves storage untouched, so callers may retry freely.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if len(input.Lines) == 0 {
		log.Warn().Stringer("owner_id", input.OwnerID).Msg("service: attempt to create order with no items")
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}
	if input.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrInvalidOrder)
	}
	if input.DeliveryType == "" {
		return nil, fmt.Errorf("%w: delivery type is required", ErrInvalidOrder)
	}

	addr, err := s.addresses.Address(ctx, input.AddressID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: address %s does not exist", ErrInvalidOrder, input.AddressID)
		}
		return nil, fmt.Errorf("service: failed to resolve address: %w", err)
	}
	if addr.OwnerID != input.OwnerID {
		return nil, fmt.Errorf("%w: address %s does not belong to the caller", ErrInvalidOrder, input.AddressID)
	}

	lines := make([]Line, 0, len(input.Lines))
	priced := make([]PricedLine, 0, len(input.Lines))
	for i, req := range input.Lines {
		if req.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %d quantity must be at least 1", ErrInvalidOrder, i)
		}

		item, err := s.catalog.MenuItem(ctx, req.MenuItemID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: menu item %s", ErrNotFound, req.MenuItemID)
			}
			return nil, fmt.Errorf("service: failed to resolve menu item %s: %w", req.MenuItemID, err)
		}
		if !item.Available {
			return nil, fmt.Errorf("%w: menu item %s is not available", ErrUnavailable, req.MenuItemID)
		}

		line := Line{
			MenuItemID: req.MenuItemID,
			Quantity:   req.Quantity,
			UnitPrice:  item.Price,
			Notes:      req.Notes,
			Addons:     make([]AddonSelection, 0, len(req.AddonIDs)),
		}
		addonPrices := make([]decimal.Decimal, 0, len(req.AddonIDs))
		seenAddons := make(map[uuid.UUID]struct{}, len(req.AddonIDs))

		for _, addonID := range req.AddonIDs {
			if _, ok := seenAddons[addonID]; ok {
				return nil, fmt.Errorf("%w: line %d lists add-on %s more than once", ErrInvalidOrder, i, addonID)
			}
			seenAddons[addonID] = struct{}{}

			addon, err := s.catalog.Addon(ctx, addonID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, fmt.Errorf("%w: add-on %s", ErrNotFound, addonID)
				}
				return nil, fmt.Errorf("service: failed to resolve add-on %s: %w", addonID, err)
			}
			if !addon.Active {
				return nil, fmt.Errorf("%w: add-on %s is not active", ErrUnavailable, addonID)
			}
			line.Addons = append(line.Addons, AddonSelection{AddonID: addonID, UnitPrice: addon.Price})
			addonPrices = append(addonPrices, addon.Price)
		}

		lines = append(lines, line)
		priced = append(priced, PricedLine{
			UnitPrice:   item.Price,
			Quantity:    req.Quantity,
			AddonPrices: addonPrices,
		})
	}

	total, err := ComputeTotal(priced)
	if err != nil {
		return nil, err
	}

	o := &Order{
		OwnerID:       input.OwnerID,
		AddressID:     input.AddressID,
		Status:        StatusPending,
		PaymentMethod: input.PaymentMethod,
		DeliveryType:  input.DeliveryType,
		Notes:         input.Notes,
		TotalAmount:   total,
		Lines:         lines,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Stringer("owner_id", input.OwnerID).Msg("service: failed to persist order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Stringer("owner_id", o.OwnerID).
		Str("total_amount", o.TotalAmount.StringFixed(2)).
		Msg("service: order created")

	s.events.OrderCreated(ctx, o)

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, caller Caller) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to fetch order %s: %w", orderID, err)
	}

	if !caller.IsAdmin() && o.OwnerID != caller.ID {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("caller_id", caller.ID).
			Msg("service: caller attempted to read another customer's order")
		return nil, fmt.Errorf("%w: order %s does not belong to the caller", ErrForbidden, orderID)
	}

	return o, nil
}

func (s *service) ListOrders(ctx context.Context, caller Caller, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidOrder, filter.Status)
	}

	q := Query{Status: filter.Status}
	if !caller.IsAdmin() {
		// A nil owner id would disable the owner filter and list every
		// order in the store.
		if caller.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: caller identity is required", ErrForbidden)
		}
		q.OwnerID = caller.ID
	}

	orders, err := s.repo.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// Cancel moves the order to cancelled on behalf of its owner or an
// administrator. The write is a compare-and-set on the order's version, so
// a concurrent transition makes this fail with ErrConflict rather than
// silently overwriting it.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, caller Caller) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to fetch order %s for cancel: %w", orderID, err)
	}

	if !caller.IsAdmin() && o.OwnerID != caller.ID {
		return nil, fmt.Errorf("%w: order %s does not belong to the caller", ErrForbidden, orderID)
	}
	if err := CheckCancel(o.Status); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, StatusCancelled, o.Version)
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to cancel order %s: %w", orderID, err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("caller_id", caller.ID).Msg("service: order cancelled")
	s.events.OrderStatusChanged(ctx, updated, o.Status)

	return updated, nil
}

// SetStatus applies an administrator status update, validated against the
// forward-only transition graph and applied with a compare-and-set.
func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, newStatus Status, caller Caller) (*Order, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may set order status", ErrForbidden)
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to fetch order %s for status update: %w", orderID, err)
	}

	if err := CheckTransition(o.Status, newStatus); err != nil {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", o.Status).
			Stringer("new_status", newStatus).
			Msg("service: rejected status transition")
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, newStatus, o.Version)
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to update status of order %s: %w", orderID, err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", o.Status).
		Stringer("new_status", newStatus).
		Msg("service: order status updated")
	s.events.OrderStatusChanged(ctx, updated, o.Status)

	return updated, nil
}
