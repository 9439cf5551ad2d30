package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mbp-reconstructor/internal/state"
)

const namespace = "mbp_replay"

// replayCollector reads the run state at scrape time, so the replay loop
// never touches prometheus types.
type replayCollector struct {
	st *state.State

	events    *prometheus.Desc
	actions   *prometheus.Desc
	rows      *prometheus.Desc
	malformed *prometheus.Desc
	rejected  *prometheus.Desc
	trades    *prometheus.Desc
	pending   *prometheus.Desc
	duration  *prometheus.Desc
	done      *prometheus.Desc
}

func newReplayCollector(st *state.State) *replayCollector {
	constLabels := prometheus.Labels{"run_id": st.RunID()}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, constLabels)
	}
	return &replayCollector{
		st:        st,
		events:    desc("events_total", "MBO events processed"),
		actions:   desc("actions_total", "MBO events processed by action", "action"),
		rows:      desc("rows_emitted_total", "MBP-10 rows emitted"),
		malformed: desc("rows_malformed_total", "Input rows skipped as malformed"),
		rejected:  desc("events_rejected_total", "Events the order book refused"),
		trades:    desc("trades_total", "Trades by outcome", "outcome"),
		pending:   desc("pending_trades", "Trades waiting for their terminating cancel"),
		duration:  desc("duration_seconds", "Replay wall time so far"),
		done:      desc("done", "1 once the replay has finished"),
	}
}

func (c *replayCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.events, c.actions, c.rows, c.malformed, c.rejected, c.trades, c.pending, c.duration, c.done,
	} {
		ch <- d
	}
}

func (c *replayCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.st.Stats()
	counter := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.events, st.Events)
	counter(c.actions, st.Clears, "clear")
	counter(c.actions, st.Adds, "add")
	counter(c.actions, st.Cancels, "cancel")
	counter(c.actions, st.Modifies, "modify")
	counter(c.actions, st.Fills, "fill")
	counter(c.actions, st.Unknown, "unknown")
	counter(c.rows, c.st.Rows())
	counter(c.malformed, c.st.Malformed())
	counter(c.rejected, st.Rejected)
	counter(c.trades, st.Trades, "resolved")
	counter(c.trades, st.TradesDropped, "dropped")

	unresolved := 0
	if sum, ok := c.st.Summary(); ok {
		unresolved = sum.UnresolvedTrades
	}
	counter(c.trades, unresolved, "unresolved")

	gauge(c.pending, float64(st.Pending))
	gauge(c.duration, c.st.Elapsed().Seconds())
	done := 0.0
	if c.st.Done() {
		done = 1
	}
	gauge(c.done, done)
}

// NewRegistry returns a registry exposing the replay collector plus the
// standard process and Go runtime collectors.
func NewRegistry(st *state.State) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		newReplayCollector(st),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return reg, nil
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(reg prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
