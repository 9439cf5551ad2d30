package mbp

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbp-reconstructor/internal/engine"
	"mbp-reconstructor/internal/mbo"
)

const input = `ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,price,size,channel_id,order_id,flags,ts_in_delta,sequence,symbol
2025-07-17T07:05:09.035793433Z,2025-07-17T07:05:09.035627674Z,160,2,1108,R,N,,0,0,0,8,0,0,ARL
2025-07-17T08:05:03.360842448Z,2025-07-17T08:05:03.360677248Z,160,2,1108,A,B,10.0,100,0,1001,130,165200,851012,ARL
2025-07-17T08:05:03.360848793Z,2025-07-17T08:05:03.360683462Z,160,2,1108,A,A,11.0,100,0,1002,130,165331,851013,ARL
2025-07-17T08:05:03.361492517Z,2025-07-17T08:05:03.361327319Z,160,2,1108,C,B,10.0,100,0,1001,130,165198,851022,ARL
`

func replay(t *testing.T, in string) []string {
	t.Helper()
	var out bytes.Buffer
	w, err := NewWriter(&out)
	require.NoError(t, err)

	e := engine.New(w, nil)
	_, err = engine.Replay(mbo.NewReader(strings.NewReader(in), nil), e, nil)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

func TestHeader(t *testing.T) {
	h := Header()
	cols := strings.Split(h, ",")
	require.Len(t, cols, 76)
	assert.Equal(t, "", cols[0])
	assert.Equal(t, "ts_recv", cols[1])
	assert.Equal(t, "bid_px_00", cols[14])
	assert.Equal(t, "ask_ct_00", cols[19])
	assert.Equal(t, "ask_ct_09", cols[73])
	assert.Equal(t, "symbol", cols[74])
	assert.Equal(t, "order_id", cols[75])
}

func TestEndToEndRows(t *testing.T) {
	lines := replay(t, input)
	require.Len(t, lines, 5)
	assert.Equal(t, Header(), lines[0])

	empty := strings.Repeat(",,0,0,,0,0", 10)
	assert.Equal(t,
		"0,2025-07-17T07:05:09.035627674Z,2025-07-17T07:05:09.035627674Z,10,2,1108,R,N,0,,0,8,0,0"+empty+",ARL,0",
		lines[1])

	assert.Equal(t,
		"1,2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,10,2,1108,A,B,0,10.00000000,100,130,165200,851012"+
			",10.00,100,1,,0,0"+strings.Repeat(",,0,0,,0,0", 9)+",ARL,1001",
		lines[2])

	assert.Equal(t,
		"3,2025-07-17T08:05:03.361327319Z,2025-07-17T08:05:03.361327319Z,10,2,1108,C,B,0,10.00000000,100,130,165198,851022"+
			",,0,0,11.00,100,1"+strings.Repeat(",,0,0,,0,0", 9)+",ARL,1001",
		lines[4])

	for _, l := range lines {
		assert.Len(t, strings.Split(l, ","), 76)
	}
}

func TestEmptyInputWritesHeaderOnly(t *testing.T) {
	lines := replay(t, "ts_recv,ts_event\n")
	assert.Equal(t, []string{Header()}, lines)
}

func TestTradeRow(t *testing.T) {
	in := "h\n" +
		"a,t1,160,2,1108,A,A,21.33,100,0,5,130,0,1,ARL\n" +
		"a,t2,160,2,1108,T,B,21.33,40,0,0,130,0,9,ARL\n" +
		"a,t3,160,2,1108,F,A,21.33,40,0,5,130,0,9,ARL\n" +
		"a,t4,160,2,1108,C,A,21.33,100,0,5,130,0,9,ARL\n"

	lines := replay(t, in)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "1,t4,t4,10,2,1108,T,A,0,21.33000000,40,130,0,9,,0,0,,0,0"), lines[2])
	assert.True(t, strings.HasSuffix(lines[2], ",ARL,5"))
}

func TestRowIndexSkipsDroppedEvents(t *testing.T) {
	in := "h\n" +
		"a,t1,160,2,1108,F,A,1,1,0,5,0,0,1,ARL\n" +
		"a,t2,160,2,1108,R,N,,0,0,0,8,0,0,ARL\n"

	lines := replay(t, in)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "0,t2,"))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterSurfacesIOErrors(t *testing.T) {
	w, err := NewWriter(failWriter{})
	require.NoError(t, err) // buffered
	assert.Error(t, w.Flush())

	_, err = NewWriter(io.Discard)
	assert.NoError(t, err)
}
