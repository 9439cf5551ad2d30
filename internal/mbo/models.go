package mbo

import (
	"github.com/shopspring/decimal"
)

// Action is the single-character MBO action code.
type Action byte

const (
	ActionClear  Action = 'R'
	ActionAdd    Action = 'A'
	ActionCancel Action = 'C'
	ActionModify Action = 'M'
	ActionTrade  Action = 'T'
	ActionFill   Action = 'F'
	ActionNone   Action = 'N'
)

func (a Action) String() string { return string(rune(a)) }

// Side is the single-character MBO side code. Ask is reported as 'A'.
type Side byte

const (
	SideBid  Side = 'B'
	SideAsk  Side = 'A'
	SideNone Side = 'N'
)

func (s Side) String() string { return string(rune(s)) }

// Opposite returns the other side of the book; None stays None.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	}
	return SideNone
}

// Event is one decoded MBO record. Timestamps are kept verbatim.
type Event struct {
	TsRecv       string
	TsEvent      string
	RType        int
	PublisherID  int
	InstrumentID uint32
	Action       Action
	Side         Side
	Price        decimal.Decimal
	Size         int64
	ChannelID    int
	OrderID      uint64
	Flags        int
	TsInDelta    int64
	Sequence     uint64
	Symbol       string
}
