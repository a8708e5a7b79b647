package client

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"basecamp/internal/domain"
)

const localIDPrefix = "local-"

// ErrUnconfirmedLine is returned when a line the server has not acknowledged
// is edited; Refresh resolves it.
var ErrUnconfirmedLine = errors.New("client: line not confirmed by the server yet")

// Line is a local cart line. Confirmed is false while the line reflects a
// change the server has not acknowledged.
type Line struct {
	domain.CartLine
	Confirmed bool
}

// Cart is the buyer's optimistic copy of the server cart. The server always
// wins: rejected changes are rolled back and Refresh overwrites local state.
type Cart struct {
	api API

	ops sync.Mutex // serializes mutations in submission order

	mu      sync.RWMutex
	lines   []Line
	version uint64
	stale   bool
	seq     int
}

func NewCart(api API) *Cart {
	return &Cart{api: api}
}

// Lines returns a copy of the local lines.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Line(nil), c.lines...)
}

func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sub := decimal.Zero
	for _, l := range c.lines {
		sub = sub.Add(l.Subtotal())
	}
	return sub
}

// Version increases on every local change.
func (c *Cart) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Stale is true after a change whose outcome on the server is unknown.
func (c *Cart) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// Refresh replaces local state with the server's lines.
func (c *Cart) Refresh(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	server, err := c.api.Cart(ctx)
	if err != nil {
		return err
	}
	lines := make([]Line, len(server))
	for i, l := range server {
		lines[i] = Line{CartLine: l, Confirmed: true}
	}
	c.mu.Lock()
	c.lines = lines
	c.stale = false
	c.version++
	c.mu.Unlock()
	return nil
}

// mutate applies local to the lines, runs remote, then settles the outcome:
// success keeps the result of settle, a rejection restores the prior lines,
// and a transport failure leaves the optimistic lines unconfirmed.
func (c *Cart) mutate(local func([]Line) []Line, remote func() error, settle func([]Line) []Line) error {
	c.mu.Lock()
	before := append([]Line(nil), c.lines...)
	c.lines = local(append([]Line(nil), c.lines...))
	c.version++
	c.mu.Unlock()

	err := remote()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.lines = settle(c.lines)
	case IsRejection(err):
		c.lines = before
		c.version++
	default:
		c.stale = true
	}
	return err
}

func indexByKey(lines []Line, k domain.VariantKey) int {
	for i, l := range lines {
		if l.Key() == k {
			return i
		}
	}
	return -1
}

func indexByID(lines []Line, id string) int {
	for i, l := range lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// AddLine merges qty into the line for k, or appends a new one.
func (c *Cart) AddLine(ctx context.Context, k domain.VariantKey, qty int) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	var server domain.CartLine
	return c.mutate(
		func(lines []Line) []Line {
			if i := indexByKey(lines, k); i >= 0 {
				lines[i].Quantity += qty
				lines[i].Confirmed = false
				return lines
			}
			c.seq++
			return append(lines, Line{CartLine: domain.CartLine{
				ID:        localIDPrefix + strconv.Itoa(c.seq),
				ProductID: k.ProductID,
				Size:      k.Size,
				Color:     k.Color,
				Quantity:  qty,
			}})
		},
		func() error {
			var err error
			server, err = c.api.AddLine(ctx, k, qty)
			return err
		},
		func(lines []Line) []Line {
			if i := indexByKey(lines, k); i >= 0 {
				lines[i] = Line{CartLine: server, Confirmed: true}
			}
			return lines
		},
	)
}

// UpdateQuantity sets a line's quantity; zero removes it.
func (c *Cart) UpdateQuantity(ctx context.Context, lineID string, qty int) error {
	if qty == 0 {
		return c.RemoveLine(ctx, lineID)
	}
	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.RLock()
	i := indexByID(c.lines, lineID)
	c.mu.RUnlock()
	if i < 0 {
		return domain.ErrNotFound
	}
	if isLocalID(lineID) {
		return ErrUnconfirmedLine
	}

	var (
		server  domain.CartLine
		removed bool
	)
	return c.mutate(
		func(lines []Line) []Line {
			if i := indexByID(lines, lineID); i >= 0 {
				lines[i].Quantity = qty
				lines[i].Confirmed = false
			}
			return lines
		},
		func() error {
			var err error
			server, removed, err = c.api.UpdateQuantity(ctx, lineID, qty)
			return err
		},
		func(lines []Line) []Line {
			i := indexByID(lines, lineID)
			switch {
			case i < 0:
			case removed:
				lines = append(lines[:i], lines[i+1:]...)
			default:
				lines[i] = Line{CartLine: server, Confirmed: true}
			}
			return lines
		},
	)
}

// RemoveLine drops a line. Unknown lines are a no-op.
func (c *Cart) RemoveLine(ctx context.Context, lineID string) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.RLock()
	i := indexByID(c.lines, lineID)
	c.mu.RUnlock()
	if i < 0 {
		return nil
	}
	if isLocalID(lineID) {
		return ErrUnconfirmedLine
	}

	return c.mutate(
		func(lines []Line) []Line {
			if i := indexByID(lines, lineID); i >= 0 {
				lines = append(lines[:i], lines[i+1:]...)
			}
			return lines
		},
		func() error { return c.api.RemoveLine(ctx, lineID) },
		func(lines []Line) []Line { return lines },
	)
}

func isLocalID(id string) bool { return strings.HasPrefix(id, localIDPrefix) }
