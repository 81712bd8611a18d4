package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrAlreadySeeded         = errors.New("product already seeded")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
)

// Line is a quantity of one product to reserve or release.
type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Stock is a point-in-time view of one product. Available is the sellable
// quantity; Available+Reserved never changes after seeding.
type Stock struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
}

func (s Stock) Total() int { return s.Available + s.Reserved }

type Shortage struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// ShortageError lists every product a ReserveAll call could not cover.
type ShortageError struct {
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (required %d, available %d)", s.ProductID, s.Required, s.Available))
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientInventory, strings.Join(parts, ", "))
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientInventory }

type entry struct {
	mu        sync.Mutex
	available int
	reserved  int
}

// Ledger tracks stock per product. Each product has its own lock, so
// reservations for different products never contend. Entries are never
// removed once seeded.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*entry)}
}

// NewSeededLedger is NewLedger followed by Seed for every product in stock.
func NewSeededLedger(stock map[string]int) (*Ledger, error) {
	l := NewLedger()
	for pid, qty := range stock {
		if err := l.Seed(pid, qty); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// DefaultStock is the catalogue the service boots with.
func DefaultStock() map[string]int {
	return map[string]int{
		"PROD-001": 100,
		"PROD-002": 50,
		"PROD-003": 75,
		"PROD-004": 200,
		"PROD-005": 30,
	}
}

// Seed initializes a product once.
func (l *Ledger) Seed(productID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: seed %s with %d", ErrInvalidQuantity, productID, qty)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[productID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySeeded, productID)
	}
	l.entries[productID] = &entry{available: qty}
	return nil
}

func (l *Ledger) lookup(productID string) *entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[productID]
}

// Available reports whether qty units could be reserved right now.
func (l *Ledger) Available(productID string, qty int) bool {
	if qty <= 0 {
		return false
	}
	return l.Sellable(productID) >= qty
}

// Sellable returns the quantity open to new reservations, 0 when unknown.
func (l *Ledger) Sellable(productID string) int {
	e := l.lookup(productID)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

func (l *Ledger) Stock(productID string) (Stock, bool) {
	e := l.lookup(productID)
	if e == nil {
		return Stock{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stock{ProductID: productID, Available: e.available, Reserved: e.reserved}, true
}

func (l *Ledger) Products() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.entries))
	for pid := range l.entries {
		out = append(out, pid)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Reserve holds qty units of a product. It returns false, changing nothing,
// when the product is unknown or short.
func (l *Ledger) Reserve(productID string, qty int) bool {
	if qty <= 0 {
		return false
	}
	e := l.lookup(productID)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.available < qty {
		return false
	}
	e.available -= qty
	e.reserved += qty
	return true
}

// Release returns qty held units to the sellable pool. It is a no-op when
// fewer than qty units are reserved.
func (l *Ledger) Release(productID string, qty int) {
	if qty <= 0 {
		return
	}
	e := l.lookup(productID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reserved < qty {
		return
	}
	e.reserved -= qty
	e.available += qty
}

// ReserveAll reserves every line or nothing. Lines for the same product are
// summed; product locks are taken in sorted order.
func (l *Ledger) ReserveAll(lines []Line) error {
	want, err := aggregate(lines)
	if err != nil {
		return err
	}
	pids := make([]string, 0, len(want))
	for pid := range want {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	locked := make([]*entry, 0, len(pids))
	defer func() {
		for _, e := range locked {
			e.mu.Unlock()
		}
	}()

	var short []Shortage
	for _, pid := range pids {
		e := l.lookup(pid)
		if e == nil {
			short = append(short, Shortage{ProductID: pid, Required: want[pid]})
			continue
		}
		e.mu.Lock()
		locked = append(locked, e)
		if e.available < want[pid] {
			short = append(short, Shortage{ProductID: pid, Required: want[pid], Available: e.available})
		}
	}
	if len(short) > 0 {
		return &ShortageError{Shortages: short}
	}

	for i, pid := range pids {
		e := locked[i]
		e.available -= want[pid]
		e.reserved += want[pid]
	}
	return nil
}

// ReleaseAll releases each line independently with Release semantics.
func (l *Ledger) ReleaseAll(lines []Line) {
	for _, ln := range lines {
		l.Release(ln.ProductID, ln.Qty)
	}
}

func aggregate(lines []Line) (map[string]int, error) {
	want := make(map[string]int, len(lines))
	for _, ln := range lines {
		if ln.Qty <= 0 {
			return nil, fmt.Errorf("%w: %s qty %d", ErrInvalidQuantity, ln.ProductID, ln.Qty)
		}
		want[ln.ProductID] += ln.Qty
	}
	return want, nil
}
