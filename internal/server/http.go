package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"mbp-reconstructor/internal/artifact"
	"mbp-reconstructor/internal/engine"
	"mbp-reconstructor/internal/orderbook"
	"mbp-reconstructor/internal/state"
)

// HTTPServer exposes a running or finished replay for inspection. It never
// touches the order book: rows arrive through Write and everything else is
// read from the run state.
type HTTPServer struct {
	st  *state.State
	reg prometheus.Gatherer
	hub *hub
	log *slog.Logger
	mux *http.ServeMux

	artifactMu sync.RWMutex
	artifact   *artifact.Info

	index   atomic.Int64
	dropped atomic.Int64
}

func NewHTTPServer(st *state.State, reg prometheus.Gatherer, logger *slog.Logger) *HTTPServer {
	s := &HTTPServer{
		st:  st,
		reg: reg,
		hub: newHub(logger),
		log: logger,
		mux: http.NewServeMux(),
	}
	s.routes()
	go s.hub.run()
	return s
}

func (s *HTTPServer) Router() http.Handler { return s.mux }

// Close disconnects websocket clients.
func (s *HTTPServer) Close() { s.hub.stop() }

// Write streams a row to websocket clients. It implements engine.Sink and
// drops rows rather than slowing the replay down.
func (s *HTTPServer) Write(snap engine.Snapshot) error {
	idx := s.index.Add(1) - 1
	if s.hub.clientCount() == 0 {
		return nil
	}
	if !s.hub.publish(marshalWS("row", newRowView(int(idx), snap))) {
		s.dropped.Add(1)
	}
	return nil
}

func (s *HTTPServer) SetArtifact(info artifact.Info) {
	s.artifactMu.Lock()
	s.artifact = &info
	s.artifactMu.Unlock()
	s.hub.publish(marshalWS("artifact", info))
}

// BroadcastSummary tells websocket clients the replay has finished.
func (s *HTTPServer) BroadcastSummary(sum engine.Summary) {
	s.hub.publish(marshalWS("summary", sum))
}

// --------- Routes ----------

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("/ws", s.hub.serveWS)

	s.mux.HandleFunc("/api/health", s.apiHealth)
	s.mux.HandleFunc("/api/stats", s.apiStats)
	s.mux.HandleFunc("/api/book", s.apiBook)
	s.mux.HandleFunc("/api/artifact", s.apiArtifact)

	if s.reg != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	}
}

func (s *HTTPServer) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":     true,
		"run_id": s.st.RunID(),
		"done":   s.st.Done(),
	})
}

func (s *HTTPServer) apiStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"run_id":          s.st.RunID(),
		"input":           s.st.Input(),
		"output":          s.st.Output(),
		"done":            s.st.Done(),
		"elapsed_ms":      s.st.Elapsed().Milliseconds(),
		"rows":            s.st.Rows(),
		"malformed":       s.st.Malformed(),
		"stats":           s.st.Stats(),
		"ws_clients":      s.hub.clientCount(),
		"ws_rows_dropped": s.dropped.Load(),
	}
	if sum, ok := s.st.Summary(); ok {
		resp["unresolved_trades"] = sum.UnresolvedTrades
	}
	writeJSON(w, resp)
}

func (s *HTTPServer) apiBook(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.st.Latest()
	if !ok {
		http.Error(w, "no rows emitted yet", http.StatusNotFound)
		return
	}
	writeJSON(w, newRowView(s.st.Rows()-1, snap))
}

func (s *HTTPServer) apiArtifact(w http.ResponseWriter, r *http.Request) {
	s.artifactMu.RLock()
	info := s.artifact
	s.artifactMu.RUnlock()
	if info == nil {
		http.Error(w, "replay still running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, info)
}

// rowView is the JSON rendering of one snapshot row.
type rowView struct {
	Index    int               `json:"index"`
	TsEvent  string            `json:"ts_event"`
	Action   string            `json:"action"`
	Side     string            `json:"side"`
	Depth    int               `json:"depth"`
	Price    decimal.Decimal   `json:"price"`
	Size     int64             `json:"size"`
	Sequence uint64            `json:"sequence"`
	OrderID  uint64            `json:"order_id"`
	Symbol   string            `json:"symbol"`
	Bids     []orderbook.Level `json:"bids"`
	Asks     []orderbook.Level `json:"asks"`
}

func newRowView(index int, snap engine.Snapshot) rowView {
	bids, asks := snap.Bids, snap.Asks
	if bids == nil {
		bids = []orderbook.Level{}
	}
	if asks == nil {
		asks = []orderbook.Level{}
	}
	return rowView{
		Index:    index,
		TsEvent:  snap.Event.TsEvent,
		Action:   snap.Action.String(),
		Side:     snap.Side.String(),
		Depth:    snap.Depth,
		Price:    snap.Event.Price,
		Size:     snap.Event.Size,
		Sequence: snap.Event.Sequence,
		OrderID:  snap.Event.OrderID,
		Symbol:   snap.Event.Symbol,
		Bids:     bids,
		Asks:     asks,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
