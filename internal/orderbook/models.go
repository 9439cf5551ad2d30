package orderbook

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MaxDepth is the number of levels per side carried by an MBP-10 snapshot.
const MaxDepth = 10

type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	}
	return "NONE"
}

var (
	ErrDuplicateOrder = errors.New("order id already resting")
	ErrInvalidSide    = errors.New("order side must be bid or ask")
)

// Level is the aggregated state at one price on one side.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`  // sum of resting sizes at this price
	Count int             `json:"count"` // resting orders at this price
}

// Order is a single resting order as last added or modified.
type Order struct {
	ID    uint64          `json:"id"`
	Side  Side            `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
}
