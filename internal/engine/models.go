package engine

import (
	"mbp-reconstructor/internal/mbo"
	"mbp-reconstructor/internal/orderbook"
)

// Snapshot is one MBP-10 output row: the triggering event as it should be
// echoed, the effective action/side/depth, and the book after the event.
type Snapshot struct {
	Event  mbo.Event
	Action mbo.Action
	Side   mbo.Side
	Depth  int
	Bids   []orderbook.Level // best first, at most orderbook.MaxDepth
	Asks   []orderbook.Level
}

// Sink receives snapshots in input order. A Sink error aborts the replay.
type Sink interface {
	Write(s Snapshot) error
}

type SinkFunc func(s Snapshot) error

func (f SinkFunc) Write(s Snapshot) error { return f(s) }

// Tee fans a snapshot out to every sink in order, stopping at the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(s Snapshot) error {
		for _, sk := range sinks {
			if err := sk.Write(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// pendingTrade is a Trade waiting for the Cancel that carries its sequence.
type pendingTrade struct {
	sequence uint64
	side     mbo.Side // resting side debited, opposite of the reported aggressor
	event    mbo.Event
}

// Stats counts what the engine did with each action.
type Stats struct {
	Events        int `json:"events"`
	Emitted       int `json:"emitted"`
	Clears        int `json:"clears"`
	Adds          int `json:"adds"`
	Cancels       int `json:"cancels"`
	Modifies      int `json:"modifies"`
	Trades        int `json:"trades"`         // resolved Trade/Cancel pairs
	TradesDropped int `json:"trades_dropped"` // trades reported without a side
	Fills         int `json:"fills"`
	Rejected      int `json:"rejected"`
	Unknown       int `json:"unknown"`
	Pending       int `json:"pending"`
}

// Summary is the final account of a replay.
type Summary struct {
	Stats
	UnresolvedTrades int `json:"unresolved_trades"`
}
