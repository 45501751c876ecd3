// Package metrics exposes the agent's Prometheus counters/gauges and
// the chi-routed /metrics and /healthz HTTP endpoints. Disabled by
// default: the listener only starts when config.MetricsListenAddr is
// non-empty.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbuselements",
		Name:      "gets_total",
		Help:      "Total GET callbacks served, partitioned by outcome.",
	}, []string{"outcome"})

	SetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbuselements",
		Name:      "sets_total",
		Help:      "Total SET callbacks served, partitioned by outcome.",
	}, []string{"outcome"})

	RowsAddedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbuselements",
		Name:      "rows_added_total",
		Help:      "Total ADD_ROW callbacks served, partitioned by outcome.",
	}, []string{"outcome"})

	RowsRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbuselements",
		Name:      "rows_removed_total",
		Help:      "Total REMOVE_ROW callbacks served, partitioned by outcome.",
	}, []string{"outcome"})

	InvokesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbuselements",
		Name:      "invokes_total",
		Help:      "Total INVOKE callbacks served, partitioned by outcome.",
	}, []string{"outcome"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbuselements",
		Name:      "events_published_total",
		Help:      "Total events published to the bus, partitioned by kind.",
	}, []string{"kind"})

	RegisteredElements = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rbuselements",
		Name:      "registered_elements",
		Help:      "Number of elements currently registered with the bus.",
	})

	LiveRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rbuselements",
		Name:      "live_rows",
		Help:      "Number of live rows per concrete table.",
	}, []string{"table"})
)

// Outcome labels GetsTotal/SetsTotal/... so a dashboard can distinguish
// success from the rbuserr taxonomy without a high-cardinality label.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Server is the optional /metrics + /healthz HTTP surface.
type Server struct {
	httpServer *http.Server
	router     chi.Router
}

// NewServer builds a chi-routed Server bound to addr. It does not start
// listening until Start is called.
func NewServer(addr string) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{Addr: addr, Handler: r}, router: r}
}

// Handler exposes the chi router for tests; production code only uses
// Start/Shutdown.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving in a background goroutine. errc receives the
// first error ListenAndServe returns, or nil on a clean Shutdown.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
			return
		}
		errc <- nil
	}()
	return errc
}

// Shutdown stops the server, giving in-flight scrapes up to 5 seconds
// to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
