package mbp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"mbp-reconstructor/internal/engine"
	"mbp-reconstructor/internal/orderbook"
)

// RType is the record type stamped on every MBP-10 row.
const RType = 10

const (
	eventPricePlaces = 8
	levelPricePlaces = 2
)

// Header is the MBP-10 column header. The first column is the unnamed row index.
func Header() string {
	b := []byte(",ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,depth,price,size,flags,ts_in_delta,sequence")
	for i := 0; i < orderbook.MaxDepth; i++ {
		for _, col := range []string{"bid_px", "bid_sz", "bid_ct", "ask_px", "ask_sz", "ask_ct"} {
			b = fmt.Appendf(b, ",%s_%02d", col, i)
		}
	}
	b = append(b, ",symbol,order_id"...)
	return string(b)
}

// Writer serializes snapshots as MBP-10 CSV rows. It implements engine.Sink.
type Writer struct {
	w   *bufio.Writer
	buf []byte
	row int
}

// NewWriter writes the header immediately so an empty replay still yields a
// valid artifact.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	if _, err := bw.WriteString(Header() + "\n"); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{w: bw, buf: make([]byte, 0, 512)}, nil
}

func (w *Writer) Write(s engine.Snapshot) error {
	w.buf = AppendRow(w.buf[:0], w.row, s)
	w.buf = append(w.buf, '\n')
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	w.row++
	return nil
}

// Rows is the number of data rows written.
func (w *Writer) Rows() int { return w.row }

func (w *Writer) Flush() error { return w.w.Flush() }

// AppendRow renders one snapshot without the trailing newline. The event
// timestamp fills both timestamp columns.
func AppendRow(b []byte, index int, s engine.Snapshot) []byte {
	ev := s.Event
	b = strconv.AppendInt(b, int64(index), 10)
	b = append(b, ',')
	b = append(b, ev.TsEvent...)
	b = append(b, ',')
	b = append(b, ev.TsEvent...)
	b = append(b, ',')
	b = strconv.AppendInt(b, RType, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(ev.PublisherID), 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, uint64(ev.InstrumentID), 10)
	b = append(b, ',', byte(s.Action), ',', byte(s.Side), ',')
	b = strconv.AppendInt(b, int64(s.Depth), 10)
	b = append(b, ',')
	if ev.Price.IsPositive() {
		b = append(b, ev.Price.StringFixed(eventPricePlaces)...)
	}
	b = append(b, ',')
	b = strconv.AppendInt(b, ev.Size, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(ev.Flags), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, ev.TsInDelta, 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, ev.Sequence, 10)

	for i := 0; i < orderbook.MaxDepth; i++ {
		b = appendLevel(b, s.Bids, i)
		b = appendLevel(b, s.Asks, i)
	}

	b = append(b, ',')
	b = append(b, ev.Symbol...)
	b = append(b, ',')
	b = strconv.AppendUint(b, ev.OrderID, 10)
	return b
}

// appendLevel writes ",px,sz,ct" for rank i, or ",,0,0" when the side is shallower.
func appendLevel(b []byte, levels []orderbook.Level, i int) []byte {
	if i >= len(levels) {
		return append(b, ",,0,0"...)
	}
	l := levels[i]
	b = append(b, ',')
	b = append(b, l.Price.StringFixed(levelPricePlaces)...)
	b = append(b, ',')
	b = strconv.AppendInt(b, l.Size, 10)
	b = append(b, ',')
	return strconv.AppendInt(b, int64(l.Count), 10)
}
