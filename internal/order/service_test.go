package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platepilot/ordering/internal/order"
)

var (
	ownerID   = uuid.Must(uuid.FromString("123e4567-e89b-12d3-a456-426614174000"))
	otherID   = uuid.Must(uuid.FromString("223e4567-e89b-12d3-a456-426614174000"))
	adminID   = uuid.Must(uuid.FromString("323e4567-e89b-12d3-a456-426614174000"))
	addressID = uuid.Must(uuid.FromString("423e4567-e89b-12d3-a456-426614174000"))
	itemAID   = uuid.Must(uuid.FromString("523e4567-e89b-12d3-a456-426614174000"))
	itemBID   = uuid.Must(uuid.FromString("623e4567-e89b-12d3-a456-426614174000"))
	addonID   = uuid.Must(uuid.FromString("723e4567-e89b-12d3-a456-426614174000"))
	orderID   = uuid.Must(uuid.FromString("823e4567-e89b-12d3-a456-426614174000"))
)

func customer(id uuid.UUID) order.Caller {
	return order.Caller{ID: id, Role: order.RoleCustomer}
}

func admin() order.Caller {
	return order.Caller{ID: adminID, Role: order.RoleAdministrator}
}

type mockRepository struct {
	createFunc       func(ctx context.Context, o *order.Order) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, newStatus order.Status, expectedVersion int) (*order.Order, error)
	queryFunc        func(ctx context.Context, q order.Query) ([]order.Order, error)
}

func (m *mockRepository) Create(ctx context.Context, o *order.Order) error {
	return m.createFunc(ctx, o)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus order.Status, expectedVersion int) (*order.Order, error) {
	return m.updateStatusFunc(ctx, id, newStatus, expectedVersion)
}

func (m *mockRepository) Query(ctx context.Context, q order.Query) ([]order.Order, error) {
	return m.queryFunc(ctx, q)
}

type mockCatalog struct {
	menuItemFunc func(ctx context.Context, id uuid.UUID) (order.MenuItemInfo, error)
	addonFunc    func(ctx context.Context, id uuid.UUID) (order.AddonInfo, error)
}

func (m *mockCatalog) MenuItem(ctx context.Context, id uuid.UUID) (order.MenuItemInfo, error) {
	return m.menuItemFunc(ctx, id)
}

func (m *mockCatalog) Addon(ctx context.Context, id uuid.UUID) (order.AddonInfo, error) {
	return m.addonFunc(ctx, id)
}

type mockAddresses struct {
	addressFunc func(ctx context.Context, id uuid.UUID) (order.AddressInfo, error)
}

func (m *mockAddresses) Address(ctx context.Context, id uuid.UUID) (order.AddressInfo, error) {
	return m.addressFunc(ctx, id)
}

type noopEvents struct{}

func (noopEvents) OrderCreated(context.Context, *order.Order)                     {}
func (noopEvents) OrderStatusChanged(context.Context, *order.Order, order.Status) {}

// defaultCatalog serves item A at 10.00 with one active 1.50 add-on and
// item B at 5.00.
func defaultCatalog() *mockCatalog {
	return &mockCatalog{
		menuItemFunc: func(ctx context.Context, id uuid.UUID) (order.MenuItemInfo, error) {
			switch id {
			case itemAID:
				return order.MenuItemInfo{Price: price("10.00"), Available: true}, nil
			case itemBID:
				return order.MenuItemInfo{Price: price("5.00"), Available: true}, nil
			}
			return order.MenuItemInfo{}, order.ErrNotFound
		},
		addonFunc: func(ctx context.Context, id uuid.UUID) (order.AddonInfo, error) {
			if id == addonID {
				return order.AddonInfo{Price: price("1.50"), Active: true}, nil
			}
			return order.AddonInfo{}, order.ErrNotFound
		},
	}
}

func defaultAddresses() *mockAddresses {
	return &mockAddresses{
		addressFunc: func(ctx context.Context, id uuid.UUID) (order.AddressInfo, error) {
			if id == addressID {
				return order.AddressInfo{OwnerID: ownerID}, nil
			}
			return order.AddressInfo{}, order.ErrNotFound
		},
	}
}

func validInput() order.CreateOrderInput {
	return order.CreateOrderInput{
		OwnerID:       ownerID,
		AddressID:     addressID,
		PaymentMethod: "card",
		DeliveryType:  "delivery",
		Lines: []order.RequestedLine{
			{MenuItemID: itemAID, Quantity: 2, AddonIDs: []uuid.UUID{addonID}},
			{MenuItemID: itemBID, Quantity: 1},
		},
	}
}

func TestService_CreateOrder(t *testing.T) {
	unknownID := uuid.Must(uuid.FromString("923e4567-e89b-12d3-a456-426614174000"))

	tests := []struct {
		name      string
		mutate    func(input *order.CreateOrderInput)
		catalog   func() *mockCatalog
		wantErrIs error
	}{
		{
			name:   "success",
			mutate: func(input *order.CreateOrderInput) {},
		},
		{
			name:      "empty_lines",
			mutate:    func(input *order.CreateOrderInput) { input.Lines = nil },
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "missing_payment_method",
			mutate:    func(input *order.CreateOrderInput) { input.PaymentMethod = "" },
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "missing_delivery_type",
			mutate:    func(input *order.CreateOrderInput) { input.DeliveryType = "" },
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "unknown_address",
			mutate:    func(input *order.CreateOrderInput) { input.AddressID = unknownID },
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "address_owned_by_someone_else",
			mutate:    func(input *order.CreateOrderInput) { input.OwnerID = otherID },
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "zero_quantity",
			mutate:    func(input *order.CreateOrderInput) { input.Lines[0].Quantity = 0 },
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "unknown_menu_item",
			mutate:    func(input *order.CreateOrderInput) { input.Lines[0].MenuItemID = unknownID },
			wantErrIs: order.ErrNotFound,
		},
		{
			name:   "unavailable_menu_item",
			mutate: func(input *order.CreateOrderInput) {},
			catalog: func() *mockCatalog {
				c := defaultCatalog()
				inner := c.menuItemFunc
				c.menuItemFunc = func(ctx context.Context, id uuid.UUID) (order.MenuItemInfo, error) {
					info, err := inner(ctx, id)
					if err == nil && id == itemAID {
						info.Available = false
					}
					return info, err
				}
				return c
			},
			wantErrIs: order.ErrUnavailable,
		},
		{
			name: "duplicated_addon",
			mutate: func(input *order.CreateOrderInput) {
				input.Lines[0].AddonIDs = []uuid.UUID{addonID, addonID}
			},
			wantErrIs: order.ErrInvalidOrder,
		},
		{
			name:      "unknown_addon",
			mutate:    func(input *order.CreateOrderInput) { input.Lines[0].AddonIDs = []uuid.UUID{unknownID} },
			wantErrIs: order.ErrNotFound,
		},
		{
			name:   "inactive_addon",
			mutate: func(input *order.CreateOrderInput) {},
			catalog: func() *mockCatalog {
				c := defaultCatalog()
				c.addonFunc = func(ctx context.Context, id uuid.UUID) (order.AddonInfo, error) {
					return order.AddonInfo{Price: price("1.50"), Active: false}, nil
				}
				return c
			},
			wantErrIs: order.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &mockRepository{
				createFunc: func(ctx context.Context, o *order.Order) error {
					created = true
					o.ID = orderID
					o.Version = 1
					return nil
				},
			}
			cat := defaultCatalog()
			if tt.catalog != nil {
				cat = tt.catalog()
			}
			svc := order.NewService(repo, cat, defaultAddresses(), noopEvents{})

			input := validInput()
			tt.mutate(&input)

			o, err := svc.CreateOrder(context.Background(), input)
			if tt.wantErrIs != nil {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				// Nothing may reach storage when any resolution fails.
				assert.False(t, created, "repository create must not be called")
				return
			}

			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, orderID, o.ID)
		})
	}
}

func TestService_CreateOrder_SnapshotsPricesAndTotal(t *testing.T) {
	var persisted *order.Order
	repo := &mockRepository{
		createFunc: func(ctx context.Context, o *order.Order) error {
			persisted = o
			o.ID = orderID
			return nil
		},
	}
	svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

	o, err := svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, persisted)

	// (10.00 + 1.50) × 2 + 5.00 = 28.00
	assert.Equal(t, "28.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, order.StatusPending, o.Status)

	require.Len(t, o.Lines, 2)
	assert.Equal(t, "10.00", o.Lines[0].UnitPrice.StringFixed(2))
	require.Len(t, o.Lines[0].Addons, 1)
	assert.Equal(t, "1.50", o.Lines[0].Addons[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "5.00", o.Lines[1].UnitPrice.StringFixed(2))
}

func storedOrder(status order.Status) *order.Order {
	return &order.Order{
		ID:          orderID,
		OwnerID:     ownerID,
		AddressID:   addressID,
		Status:      status,
		TotalAmount: price("28.00"),
		Version:     1,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestService_GetOrder(t *testing.T) {
	tests := []struct {
		name      string
		caller    order.Caller
		stored    *order.Order
		wantErrIs error
	}{
		{name: "owner_reads_own_order", caller: customer(ownerID), stored: storedOrder(order.StatusPending)},
		{name: "other_customer_forbidden", caller: customer(otherID), stored: storedOrder(order.StatusPending), wantErrIs: order.ErrForbidden},
		{name: "administrator_unscoped", caller: admin(), stored: storedOrder(order.StatusPending)},
		{name: "missing_order", caller: customer(ownerID), stored: nil, wantErrIs: order.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					if tt.stored == nil {
						return nil, order.ErrNotFound
					}
					return tt.stored, nil
				},
			}
			svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

			o, err := svc.GetOrder(context.Background(), orderID, tt.caller)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, orderID, o.ID)
		})
	}
}

func TestService_ListOrders(t *testing.T) {
	var gotQuery order.Query
	repo := &mockRepository{
		queryFunc: func(ctx context.Context, q order.Query) ([]order.Order, error) {
			gotQuery = q
			return []order.Order{*storedOrder(order.StatusPending)}, nil
		},
	}
	svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

	_, err := svc.ListOrders(context.Background(), customer(ownerID), order.ListFilter{Status: order.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, ownerID, gotQuery.OwnerID, "customer listing must be owner-scoped")
	assert.Equal(t, order.StatusPending, gotQuery.Status)

	_, err = svc.ListOrders(context.Background(), admin(), order.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, gotQuery.OwnerID, "administrator listing must be unscoped")

	_, err = svc.ListOrders(context.Background(), admin(), order.ListFilter{Status: order.Status("shipped")})
	assert.True(t, errors.Is(err, order.ErrInvalidOrder))
}

func TestService_ListOrders_NilCustomerIdentity(t *testing.T) {
	queried := false
	repo := &mockRepository{
		queryFunc: func(ctx context.Context, q order.Query) ([]order.Order, error) {
			queried = true
			return nil, nil
		},
	}
	svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

	// A nil customer id must not degrade into an unscoped listing.
	_, err := svc.ListOrders(context.Background(), customer(uuid.Nil), order.ListFilter{})
	assert.True(t, errors.Is(err, order.ErrForbidden), "got %v", err)
	assert.False(t, queried, "repository query must not run for a nil customer identity")
}

func TestService_Cancel(t *testing.T) {
	tests := []struct {
		name      string
		caller    order.Caller
		status    order.Status
		wantErrIs error
	}{
		{name: "owner_cancels_pending", caller: customer(ownerID), status: order.StatusPending},
		{name: "owner_cancels_out_for_delivery", caller: customer(ownerID), status: order.StatusOutForDelivery},
		{name: "administrator_cancels_for_customer", caller: admin(), status: order.StatusConfirmed},
		{name: "other_customer_forbidden", caller: customer(otherID), status: order.StatusPending, wantErrIs: order.ErrForbidden},
		{name: "delivered_is_terminal", caller: customer(ownerID), status: order.StatusDelivered, wantErrIs: order.ErrConflict},
		{name: "already_cancelled", caller: customer(ownerID), status: order.StatusCancelled, wantErrIs: order.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updateCalled := false
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return storedOrder(tt.status), nil
				},
				updateStatusFunc: func(ctx context.Context, id uuid.UUID, newStatus order.Status, expectedVersion int) (*order.Order, error) {
					updateCalled = true
					assert.Equal(t, order.StatusCancelled, newStatus)
					assert.Equal(t, 1, expectedVersion)
					updated := storedOrder(newStatus)
					updated.Version = 2
					return updated, nil
				},
			}
			svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

			o, err := svc.Cancel(context.Background(), orderID, tt.caller)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				assert.False(t, updateCalled)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, order.StatusCancelled, o.Status)
		})
	}
}

func TestService_SetStatus(t *testing.T) {
	tests := []struct {
		name      string
		caller    order.Caller
		current   order.Status
		next      order.Status
		wantErrIs error
	}{
		{name: "confirm_pending", caller: admin(), current: order.StatusPending, next: order.StatusConfirmed},
		{name: "full_forward_step", caller: admin(), current: order.StatusOutForDelivery, next: order.StatusDelivered},
		{name: "customer_forbidden", caller: customer(ownerID), current: order.StatusPending, next: order.StatusConfirmed, wantErrIs: order.ErrForbidden},
		{name: "unknown_status", caller: admin(), current: order.StatusPending, next: order.Status("shipped"), wantErrIs: order.ErrInvalidOrder},
		{name: "skip_ahead_rejected", caller: admin(), current: order.StatusPending, next: order.StatusDelivered, wantErrIs: order.ErrConflict},
		{name: "terminal_rejected", caller: admin(), current: order.StatusDelivered, next: order.StatusPreparing, wantErrIs: order.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return storedOrder(tt.current), nil
				},
				updateStatusFunc: func(ctx context.Context, id uuid.UUID, newStatus order.Status, expectedVersion int) (*order.Order, error) {
					updated := storedOrder(newStatus)
					updated.Version = 2
					return updated, nil
				},
			}
			svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

			o, err := svc.SetStatus(context.Background(), orderID, tt.next, tt.caller)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, o.Status)
		})
	}
}

// casRepository models the store during a status race: every reader sees
// the same stale snapshot (both callers loaded the order before either
// wrote), while UpdateStatus applies real compare-and-set semantics
// against the current row.
type casRepository struct {
	mu       sync.Mutex
	snapshot order.Order
	current  order.Order
}

func newCASRepository(o order.Order) *casRepository {
	return &casRepository{snapshot: o, current: o}
}

func (r *casRepository) Create(ctx context.Context, o *order.Order) error {
	return errors.New("not implemented")
}

func (r *casRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	cp := r.snapshot
	return &cp, nil
}

func (r *casRepository) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus order.Status, expectedVersion int) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.Version != expectedVersion {
		return nil, order.ErrConflict
	}
	r.current.Status = newStatus
	r.current.Version++
	cp := r.current
	return &cp, nil
}

func (r *casRepository) Query(ctx context.Context, q order.Query) ([]order.Order, error) {
	return nil, errors.New("not implemented")
}

func TestService_ConcurrentTransitionsExactlyOneWins(t *testing.T) {
	repo := newCASRepository(*storedOrder(order.StatusPending))
	svc := order.NewService(repo, defaultCatalog(), defaultAddresses(), noopEvents{})

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.SetStatus(context.Background(), orderID, order.StatusConfirmed, admin())
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.SetStatus(context.Background(), orderID, order.StatusCancelled, admin())
	}()
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, order.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one transition must win")
	assert.Equal(t, 1, conflicts, "the loser must see a conflict")

	repo.mu.Lock()
	final := repo.current
	repo.mu.Unlock()
	assert.Equal(t, 2, final.Version)
	assert.Contains(t, []order.Status{order.StatusConfirmed, order.StatusCancelled}, final.Status)
}
