// Package cart holds the chat front-end's draft carts. A draft is an
// explicit session entity keyed by conversation id with its own TTL; it is
// not an order and nothing here touches storage. Checkout hands the draft's
// lines to the order service and discards the draft.
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/platepilot/ordering/internal/order"
)

type DraftLine struct {
	MenuItemID uuid.UUID   `json:"menu_item_id"`
	Quantity   int         `json:"quantity"`
	Notes      string      `json:"notes,omitempty"`
	AddonIDs   []uuid.UUID `json:"addon_ids,omitempty"`
}

type Draft struct {
	ConversationID string      `json:"conversation_id"`
	OwnerID        uuid.UUID   `json:"owner_id"`
	Lines          []DraftLine `json:"lines"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Store keeps drafts in memory with a per-draft TTL. It is safe for
// concurrent use; expired drafts are dropped lazily on access and swept by
// a janitor goroutine.
type Store struct {
	mu       sync.RWMutex
	drafts   map[string]*Draft
	inflight map[string]bool
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

func NewStore(ttl time.Duration) *Store {
	s := &Store{
		drafts:   make(map[string]*Draft),
		inflight: make(map[string]bool),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, d := range s.drafts {
				if now.Sub(d.UpdatedAt) > s.ttl {
					delete(s.drafts, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Stop terminates the janitor goroutine.
func (s *Store) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) expired(d *Draft) bool {
	return time.Since(d.UpdatedAt) > s.ttl
}

// Get returns a copy of the draft for the conversation, or
// order.ErrNotFound if none exists or it has expired.
func (s *Store) Get(conversationID string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[conversationID]
	if !ok || s.expired(d) {
		return Draft{}, fmt.Errorf("%w: no draft cart for conversation %s", order.ErrNotFound, conversationID)
	}

	cp := *d
	cp.Lines = append([]DraftLine(nil), d.Lines...)
	return cp, nil
}

// AddLine appends a line to the conversation's draft, creating the draft
// if needed. An existing draft owned by a different identity is rejected.
func (s *Store) AddLine(conversationID string, ownerID uuid.UUID, line DraftLine) (Draft, error) {
	if line.Quantity < 1 {
		return Draft{}, fmt.Errorf("%w: quantity must be at least 1", order.ErrInvalidOrder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[conversationID]
	if !ok || s.expired(d) {
		d = &Draft{ConversationID: conversationID, OwnerID: ownerID}
		s.drafts[conversationID] = d
	}
	if d.OwnerID != ownerID {
		return Draft{}, fmt.Errorf("%w: draft cart belongs to another customer", order.ErrForbidden)
	}

	d.Lines = append(d.Lines, line)
	d.UpdatedAt = time.Now()

	cp := *d
	cp.Lines = append([]DraftLine(nil), d.Lines...)
	return cp, nil
}

// RemoveLine drops all lines for the given menu item from the draft.
func (s *Store) RemoveLine(conversationID string, ownerID uuid.UUID, menuItemID uuid.UUID) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[conversationID]
	if !ok || s.expired(d) {
		return Draft{}, fmt.Errorf("%w: no draft cart for conversation %s", order.ErrNotFound, conversationID)
	}
	if d.OwnerID != ownerID {
		return Draft{}, fmt.Errorf("%w: draft cart belongs to another customer", order.ErrForbidden)
	}

	kept := d.Lines[:0]
	for _, line := range d.Lines {
		if line.MenuItemID != menuItemID {
			kept = append(kept, line)
		}
	}
	d.Lines = kept
	d.UpdatedAt = time.Now()

	cp := *d
	cp.Lines = append([]DraftLine(nil), d.Lines...)
	return cp, nil
}

// Delete discards the conversation's draft, if any.
func (s *Store) Delete(conversationID string) {
	s.mu.Lock()
	delete(s.drafts, conversationID)
	s.mu.Unlock()
}

// claim atomically marks the conversation's draft as checking out and
// returns a copy of it. A second claim before release yields ErrConflict,
// so a double-submitted checkout cannot place two orders.
func (s *Store) claim(conversationID string, ownerID uuid.UUID) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[conversationID]
	if !ok || s.expired(d) {
		return Draft{}, fmt.Errorf("%w: no draft cart for conversation %s", order.ErrNotFound, conversationID)
	}
	if d.OwnerID != ownerID {
		return Draft{}, fmt.Errorf("%w: draft cart belongs to another customer", order.ErrForbidden)
	}
	if s.inflight[conversationID] {
		return Draft{}, fmt.Errorf("%w: checkout already in progress for conversation %s", order.ErrConflict, conversationID)
	}
	s.inflight[conversationID] = true

	cp := *d
	cp.Lines = append([]DraftLine(nil), d.Lines...)
	return cp, nil
}

// release ends a claim; with discard it also drops the draft.
func (s *Store) release(conversationID string, discard bool) {
	s.mu.Lock()
	delete(s.inflight, conversationID)
	if discard {
		delete(s.drafts, conversationID)
	}
	s.mu.Unlock()
}

// Checkout turns the draft into an order via svc and deletes the draft on
// success. The draft is claimed before the order service is called, so
// only one checkout per conversation can be in flight. The draft survives
// a failed checkout so the customer can fix it and retry.
func (s *Store) Checkout(ctx context.Context, svc order.Service, conversationID string, input CheckoutInput) (*order.Order, error) {
	d, err := s.claim(conversationID, input.OwnerID)
	if err != nil {
		return nil, err
	}

	lines := make([]order.RequestedLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, order.RequestedLine{
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			Notes:      line.Notes,
			AddonIDs:   line.AddonIDs,
		})
	}

	o, err := svc.CreateOrder(ctx, order.CreateOrderInput{
		OwnerID:       input.OwnerID,
		AddressID:     input.AddressID,
		PaymentMethod: input.PaymentMethod,
		DeliveryType:  input.DeliveryType,
		Notes:         input.Notes,
		Lines:         lines,
	})
	if err != nil {
		s.release(conversationID, false)
		return nil, err
	}

	s.release(conversationID, true)
	return o, nil
}

// CheckoutInput carries the order fields a draft does not hold.
type CheckoutInput struct {
	OwnerID       uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod string
	DeliveryType  string
	Notes         string
}
