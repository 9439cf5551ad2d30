package mbo

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,price,size,channel_id,order_id,flags,ts_in_delta,sequence,symbol\n"

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestReaderDecodesRow(t *testing.T) {
	in := header +
		"2025-07-17T08:05:03.360842448Z,2025-07-17T08:05:03.360677248Z,160,2,1108,A,B,5.51,100,0,817593,130,165200,851012,ARL\n"

	evs := readAll(t, NewReader(strings.NewReader(in), nil))
	require.Len(t, evs, 1)

	ev := evs[0]
	assert.Equal(t, "2025-07-17T08:05:03.360842448Z", ev.TsRecv)
	assert.Equal(t, "2025-07-17T08:05:03.360677248Z", ev.TsEvent)
	assert.Equal(t, 160, ev.RType)
	assert.Equal(t, 2, ev.PublisherID)
	assert.Equal(t, uint32(1108), ev.InstrumentID)
	assert.Equal(t, ActionAdd, ev.Action)
	assert.Equal(t, SideBid, ev.Side)
	assert.Equal(t, "5.51", ev.Price.String())
	assert.Equal(t, int64(100), ev.Size)
	assert.Equal(t, uint64(817593), ev.OrderID)
	assert.Equal(t, 130, ev.Flags)
	assert.Equal(t, int64(165200), ev.TsInDelta)
	assert.Equal(t, uint64(851012), ev.Sequence)
	assert.Equal(t, "ARL", ev.Symbol)
}

func TestReaderEmptyFieldsDefault(t *testing.T) {
	in := header + "a,b,160,2,1108,R,,,,0,0,8,0,0,ARL\n"

	evs := readAll(t, NewReader(strings.NewReader(in), nil))
	require.Len(t, evs, 1)
	assert.Equal(t, ActionClear, evs[0].Action)
	assert.Equal(t, SideNone, evs[0].Side)
	assert.True(t, evs[0].Price.IsZero())
	assert.Zero(t, evs[0].Size)
}

func TestReaderSkipsMalformed(t *testing.T) {
	in := header +
		"a,b,160,2,1108,A,B,10.0,100\n" +
		"a,b,160,2,1108,A,B,ten,100,0,1,130,0,5,ARL\n" +
		"a,b,160,2,1108,A,A,11.0,100,0,2,130,0,6,ARL\n"

	r := NewReader(strings.NewReader(in), nil)
	evs := readAll(t, r)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(2), evs[0].OrderID)
	assert.Equal(t, 3, r.Rows())
	assert.Equal(t, 2, r.Malformed())
}

func TestReaderHeaderOnly(t *testing.T) {
	r := NewReader(strings.NewReader(header), nil)
	assert.Empty(t, readAll(t, r))
	assert.Zero(t, r.Rows())
}

func TestParseFieldsShortRow(t *testing.T) {
	_, err := ParseFields([]string{"a", "b"})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideAsk, SideBid.Opposite())
	assert.Equal(t, SideBid, SideAsk.Opposite())
	assert.Equal(t, SideNone, SideNone.Opposite())
}

func TestReaderStrayQuoteStaysOnItsRow(t *testing.T) {
	in := header +
		"a,b,160,2,1108,A,B,10.0,100,0,1,130,0,5,\"ARL\n" +
		"a,b,160,2,1108,A,A,11.0,100,0,2,130,0,6,ARL\n" +
		"a,b,160,2,1108,A,A,11.5,100,0,3,130,0,7,ARL\n"

	r := NewReader(strings.NewReader(in), nil)
	evs := readAll(t, r)
	require.Len(t, evs, 3)
	assert.Equal(t, "\"ARL", evs[0].Symbol)
	for i, ev := range evs {
		assert.Equal(t, uint64(i+1), ev.OrderID)
	}
	assert.Equal(t, "ARL", evs[2].Symbol)
	assert.Equal(t, 3, r.Rows())
	assert.Zero(t, r.Malformed())
}

func TestReaderCRLF(t *testing.T) {
	in := strings.ReplaceAll(header+"a,b,160,2,1108,A,B,10.0,100,0,1,130,0,5,ARL\n", "\n", "\r\n")

	evs := readAll(t, NewReader(strings.NewReader(in), nil))
	require.Len(t, evs, 1)
	assert.Equal(t, "ARL", evs[0].Symbol)
}

func TestReaderEmptySymbolDecodes(t *testing.T) {
	in := header + "a,b,160,2,1108,A,B,10.0,100,0,1,130,0,5,\n"

	r := NewReader(strings.NewReader(in), nil)
	evs := readAll(t, r)
	require.Len(t, evs, 1)
	assert.Empty(t, evs[0].Symbol)
	assert.Zero(t, r.Malformed())
}

func TestReaderLineTooLong(t *testing.T) {
	in := header + strings.Repeat("x", maxLine+1) + "\n"

	_, err := NewReader(strings.NewReader(in), nil).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
