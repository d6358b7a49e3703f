package engine

import (
	"fmt"
	"sync"

	"forex_go/internal/domain"
)

// Book is the authoritative in-memory order store for a trading session,
// keyed by order id. Orders are never physically deleted; closed and
// cancelled orders remain queryable until the session ends. All reads
// return copies so that only the manager mutates order state, and only
// through Mutate.
type Book struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	seq    []string // insertion order, for stable listings
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{
		orders: make(map[string]*domain.Order),
	}
}

// Insert adds a new order. Duplicate ids are a programming error.
func (b *Book) Insert(o *domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[o.ID]; exists {
		return fmt.Errorf("duplicate order id %s", o.ID)
	}
	cp := *o
	b.orders[o.ID] = &cp
	b.seq = append(b.seq, o.ID)
	return nil
}

// Get returns a copy of the order with the given id.
func (b *Book) Get(id string) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// GetByTicket returns a copy of the order with the given broker ticket.
func (b *Book) GetByTicket(ticket int64) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range b.seq {
		if o := b.orders[id]; o.Ticket == ticket {
			return *o, true
		}
	}
	return domain.Order{}, false
}

// Mutate runs fn against the stored order under the write lock. fn must not
// block; broker I/O happens outside the lock. Mutating a terminal order is
// refused before fn runs.
func (b *Book) Mutate(id string, fn func(o *domain.Order) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	if o.IsTerminal() {
		return fmt.Errorf("order %s is %s: %w", id, o.Status, domain.ErrInvalidState)
	}
	return fn(o)
}

// All returns copies of every order in insertion order.
func (b *Book) All() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Order, 0, len(b.seq))
	for _, id := range b.seq {
		out = append(out, *b.orders[id])
	}
	return out
}

// ByStatus returns copies of all orders with the given status.
func (b *Book) ByStatus(status domain.Status) []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Order
	for _, id := range b.seq {
		if o := b.orders[id]; o.Status == status {
			out = append(out, *o)
		}
	}
	return out
}

// OpenBySymbol returns copies of all open orders on a symbol.
func (b *Book) OpenBySymbol(symbol string) []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Order
	for _, id := range b.seq {
		if o := b.orders[id]; o.Symbol == symbol && o.IsOpen() {
			out = append(out, *o)
		}
	}
	return out
}

// Count returns the total number of orders in the book.
func (b *Book) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
