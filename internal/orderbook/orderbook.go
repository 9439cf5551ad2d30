package orderbook

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// bookSide keeps one side's levels twice: keyed by canonical price for
// updates, and as a best-first price slice for top-N reads.
type bookSide struct {
	side   Side
	levels map[string]*Level
	prices []decimal.Decimal
}

func newBookSide(side Side) *bookSide {
	return &bookSide{side: side, levels: make(map[string]*Level)}
}

// compare orders two prices best-first: descending for bids, ascending for asks.
func (s *bookSide) compare(a, b decimal.Decimal) int {
	if s.side == Bid {
		return b.Cmp(a)
	}
	return a.Cmp(b)
}

func (s *bookSide) add(price decimal.Decimal, size int64) {
	k := canonicalPriceKey(price)
	lvl, ok := s.levels[k]
	if !ok {
		lvl = &Level{Price: price}
		s.levels[k] = lvl
		i, _ := slices.BinarySearchFunc(s.prices, price, s.compare)
		s.prices = slices.Insert(s.prices, i, price)
	}
	lvl.Size += size
	lvl.Count++
}

func (s *bookSide) remove(price decimal.Decimal, size int64) {
	k := canonicalPriceKey(price)
	lvl, ok := s.levels[k]
	if !ok {
		return
	}
	lvl.Size -= size
	lvl.Count--
	if lvl.Size > 0 {
		return
	}
	delete(s.levels, k)
	if i, found := slices.BinarySearchFunc(s.prices, price, s.compare); found {
		s.prices = slices.Delete(s.prices, i, i+1)
	}
}

func (s *bookSide) top(n int) []Level {
	if n > len(s.prices) {
		n = len(s.prices)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Level, n)
	for i, p := range s.prices[:n] {
		out[i] = *s.levels[canonicalPriceKey(p)]
	}
	return out
}

func (s *bookSide) reset() {
	s.levels = make(map[string]*Level)
	s.prices = s.prices[:0]
}

// OrderBook aggregates resting orders for a single instrument into price
// levels. It is single-writer and not safe for concurrent use.
type OrderBook struct {
	bids   *bookSide
	asks   *bookSide
	orders map[uint64]*Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:   newBookSide(Bid),
		asks:   newBookSide(Ask),
		orders: make(map[uint64]*Order),
	}
}

func (b *OrderBook) sideOf(side Side) *bookSide {
	switch side {
	case Bid:
		return b.bids
	case Ask:
		return b.asks
	}
	return nil
}

// Add rests a new order. A live id is never overwritten.
func (b *OrderBook) Add(id uint64, side Side, price decimal.Decimal, size int64) error {
	s := b.sideOf(side)
	if s == nil {
		return fmt.Errorf("add order %d: %w", id, ErrInvalidSide)
	}
	if _, ok := b.orders[id]; ok {
		return fmt.Errorf("add order %d: %w", id, ErrDuplicateOrder)
	}
	b.orders[id] = &Order{ID: id, Side: side, Price: price, Size: size}
	s.add(price, size)
	return nil
}

// Cancel removes an order and reports what was removed. Unknown ids are
// ignored: historical logs reference orders from before the loaded window.
func (b *OrderBook) Cancel(id uint64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	b.sideOf(o.Side).remove(o.Price, o.Size)
	delete(b.orders, id)
	return *o, true
}

// Modify re-prices and re-sizes an order as cancel-then-add, keeping the
// side the order rested on.
func (b *OrderBook) Modify(id uint64, price decimal.Decimal, size int64) (bool, error) {
	prev, ok := b.Cancel(id)
	if !ok {
		return false, nil
	}
	return true, b.Add(id, prev.Side, price, size)
}

func (b *OrderBook) Clear() {
	b.bids.reset()
	b.asks.reset()
	b.orders = make(map[uint64]*Order)
}

// TopLevels returns up to n levels best price first. The result is a copy.
func (b *OrderBook) TopLevels(side Side, n int) []Level {
	s := b.sideOf(side)
	if s == nil {
		return nil
	}
	return s.top(n)
}

// Depth returns the 0-based rank of price among the best n levels of side,
// or -1 when the price is not within them.
func (b *OrderBook) Depth(side Side, price decimal.Decimal, n int) int {
	s := b.sideOf(side)
	if s == nil {
		return -1
	}
	for i, p := range s.prices {
		if i >= n {
			break
		}
		if p.Equal(price) {
			return i
		}
	}
	return -1
}

func (b *OrderBook) Order(id uint64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Len is the number of resting orders.
func (b *OrderBook) Len() int { return len(b.orders) }

func (b *OrderBook) LevelCount(side Side) int {
	s := b.sideOf(side)
	if s == nil {
		return 0
	}
	return len(s.prices)
}

// canonicalPriceKey normalizes a Decimal so numerically equal values hash to the same key.
// String() drops redundant trailing zeros ("10.00" -> "10").
func canonicalPriceKey(p decimal.Decimal) string {
	return p.String()
}
