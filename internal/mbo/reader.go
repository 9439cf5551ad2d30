package mbo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldCount is the number of positional fields in an MBO row.
const FieldCount = 15

// maxLine bounds a single input row.
const maxLine = 1 << 20

var ErrMalformed = errors.New("malformed mbo row")

// Reader decodes MBO rows from a line-oriented stream. Fields are split on
// ',' with no quoting, so a stray quote only spoils its own row. The header
// row is discarded and rows that cannot be decoded are skipped, never
// surfaced to the caller.
type Reader struct {
	sc     *bufio.Scanner
	log    *slog.Logger
	line   int
	header bool

	rows      int
	malformed int
}

func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc, log: logger}
}

// Next returns the next well-formed event, or io.EOF once the stream is drained.
func (r *Reader) Next() (Event, error) {
	for r.sc.Scan() {
		r.line++
		line := strings.TrimSuffix(r.sc.Text(), "\r")
		if !r.header {
			r.header = true
			continue
		}
		if line == "" {
			continue
		}
		r.rows++
		ev, err := ParseFields(strings.Split(line, ","))
		if err != nil {
			r.skip(r.line, err)
			continue
		}
		return ev, nil
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, fmt.Errorf("read mbo line %d: %w", r.line+1, err)
	}
	return Event{}, io.EOF
}

func (r *Reader) skip(line int, err error) {
	r.malformed++
	if r.log != nil {
		r.log.Debug("skipping mbo row", slog.Int("line", line), slog.String("err", err.Error()))
	}
}

// Rows is the number of data rows seen so far, malformed ones included.
func (r *Reader) Rows() int { return r.rows }

// Malformed is the number of rows skipped so far.
func (r *Reader) Malformed() int { return r.malformed }

// ParseFields decodes one positional MBO row. Empty action or side decode as
// 'N', empty numeric fields as zero.
func ParseFields(fields []string) (Event, error) {
	if len(fields) < FieldCount {
		return Event{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformed, len(fields), FieldCount)
	}
	p := fieldParser{fields: fields}
	ev := Event{
		TsRecv:       fields[0],
		TsEvent:      fields[1],
		RType:        p.asInt(2),
		PublisherID:  p.asInt(3),
		InstrumentID: uint32(p.asUint(4, 32)),
		Action:       Action(firstByte(fields[5], byte(ActionNone))),
		Side:         Side(firstByte(fields[6], byte(SideNone))),
		Price:        p.asPrice(7),
		Size:         p.asInt64(8),
		ChannelID:    p.asInt(9),
		OrderID:      p.asUint(10, 64),
		Flags:        p.asInt(11),
		TsInDelta:    p.asInt64(12),
		Sequence:     p.asUint(13, 64),
		Symbol:       fields[14],
	}
	if p.err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, p.err)
	}
	return ev, nil
}

// fieldParser keeps the first conversion error so a row decodes in one pass.
type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) text(i int) string { return strings.TrimSpace(p.fields[i]) }

func (p *fieldParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
}

func (p *fieldParser) asInt64(i int) int64 {
	s := p.text(i)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) asInt(i int) int { return int(p.asInt64(i)) }

func (p *fieldParser) asUint(i int, bits int) uint64 {
	s := p.text(i)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *fieldParser) asPrice(i int) decimal.Decimal {
	s := p.text(i)
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		p.fail(i, err)
		return decimal.Zero
	}
	return v
}

func firstByte(s string, def byte) byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s[0]
}
