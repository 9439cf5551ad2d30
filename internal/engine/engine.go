package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"mbp-reconstructor/internal/mbo"
	"mbp-reconstructor/internal/orderbook"
)

// ErrRejected wraps book errors for events that could not be applied. The
// event produces no row; the replay may continue.
var ErrRejected = errors.New("event rejected")

// Engine replays MBO events against one order book and emits a snapshot per
// state-changing event. It is single-threaded.
type Engine struct {
	book *orderbook.OrderBook
	sink Sink
	log  *slog.Logger

	pending map[uint64][]pendingTrade
	stats   Stats
}

func New(sink Sink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		book:    orderbook.NewOrderBook(),
		sink:    sink,
		log:     logger,
		pending: make(map[uint64][]pendingTrade),
	}
}

func (e *Engine) Book() *orderbook.OrderBook { return e.book }

func (e *Engine) Stats() Stats { return e.stats }

// Process applies one event. A returned error wrapping ErrRejected leaves the
// engine usable; any other error comes from the sink.
func (e *Engine) Process(ev mbo.Event) error {
	e.stats.Events++

	switch ev.Action {
	case mbo.ActionClear:
		e.book.Clear()
		e.stats.Clears++
		return e.emit(ev, mbo.ActionClear, mbo.SideNone, 0)

	case mbo.ActionAdd:
		side, ok := bookSide(ev.Side)
		if !ok {
			return e.reject(ev, orderbook.ErrInvalidSide)
		}
		if err := e.book.Add(ev.OrderID, side, ev.Price, ev.Size); err != nil {
			return e.reject(ev, err)
		}
		e.stats.Adds++
		return e.emit(ev, mbo.ActionAdd, ev.Side, e.depth(ev.Side, ev.Price))

	case mbo.ActionCancel:
		if pt, ok := e.takePending(ev.Sequence); ok {
			// Terminating leg of Trade/Fill/Cancel: the book change is the
			// cancel, the row is the trade.
			e.book.Cancel(ev.OrderID)
			e.stats.Trades++
			out := ev
			out.Price = pt.event.Price
			out.Size = pt.event.Size
			return e.emit(out, mbo.ActionTrade, pt.side, e.depth(pt.side, pt.event.Price))
		}
		d := e.depth(ev.Side, ev.Price)
		e.book.Cancel(ev.OrderID)
		e.stats.Cancels++
		return e.emit(ev, mbo.ActionCancel, ev.Side, d)

	case mbo.ActionModify:
		if _, err := e.book.Modify(ev.OrderID, ev.Price, ev.Size); err != nil {
			return e.reject(ev, err)
		}
		e.stats.Modifies++
		return e.emit(ev, mbo.ActionModify, ev.Side, 0)

	case mbo.ActionTrade:
		if ev.Side == mbo.SideNone {
			e.stats.TradesDropped++
			return nil
		}
		e.pending[ev.Sequence] = append(e.pending[ev.Sequence], pendingTrade{
			sequence: ev.Sequence,
			side:     ev.Side.Opposite(),
			event:    ev,
		})
		e.stats.Pending++
		return nil

	case mbo.ActionFill:
		e.stats.Fills++
		return nil

	default:
		e.stats.Unknown++
		e.log.Debug("ignoring unknown action",
			slog.String("action", ev.Action.String()),
			slog.Uint64("sequence", ev.Sequence),
		)
		return nil
	}
}

// Close reports the run totals. Trades still waiting for their Cancel are
// discarded without output and counted as unresolved.
func (e *Engine) Close() Summary {
	sum := Summary{Stats: e.stats, UnresolvedTrades: e.stats.Pending}
	if sum.UnresolvedTrades > 0 {
		e.log.Warn("unresolved trades at end of stream",
			slog.Int("count", sum.UnresolvedTrades),
		)
	}
	e.pending = make(map[uint64][]pendingTrade)
	e.stats.Pending = 0
	return sum
}

// takePending consumes the oldest pending trade for sequence.
func (e *Engine) takePending(sequence uint64) (pendingTrade, bool) {
	q := e.pending[sequence]
	if len(q) == 0 {
		return pendingTrade{}, false
	}
	pt := q[0]
	if len(q) == 1 {
		delete(e.pending, sequence)
	} else {
		e.pending[sequence] = q[1:]
	}
	e.stats.Pending--
	return pt, true
}

// depth is the rank of price among the visible levels; prices outside the
// top levels report 0.
func (e *Engine) depth(side mbo.Side, price decimal.Decimal) int {
	bs, ok := bookSide(side)
	if !ok {
		return 0
	}
	if d := e.book.Depth(bs, price, orderbook.MaxDepth); d >= 0 {
		return d
	}
	return 0
}

func (e *Engine) emit(ev mbo.Event, action mbo.Action, side mbo.Side, depth int) error {
	s := Snapshot{
		Event:  ev,
		Action: action,
		Side:   side,
		Depth:  depth,
		Bids:   e.book.TopLevels(orderbook.Bid, orderbook.MaxDepth),
		Asks:   e.book.TopLevels(orderbook.Ask, orderbook.MaxDepth),
	}
	if err := e.sink.Write(s); err != nil {
		return fmt.Errorf("write snapshot for sequence %d: %w", ev.Sequence, err)
	}
	e.stats.Emitted++
	return nil
}

func (e *Engine) reject(ev mbo.Event, err error) error {
	e.stats.Rejected++
	return fmt.Errorf("%w: %s order %d: %w", ErrRejected, ev.Action, ev.OrderID, err)
}

// bookSide maps an event side onto the book. Side N has no book side, so an
// Add carrying it is rejected rather than resting and emitting an A,N row.
func bookSide(s mbo.Side) (orderbook.Side, bool) {
	switch s {
	case mbo.SideBid:
		return orderbook.Bid, true
	case mbo.SideAsk:
		return orderbook.Ask, true
	}
	return 0, false
}
