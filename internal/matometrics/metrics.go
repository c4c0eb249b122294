// Package matometrics exposes live Prometheus gauges/counters for
// connections, modules, subscriptions, dangling descriptors, reconnect
// attempts, and redistribution throughput, plus a cron-scheduled stats reporter that
// logs a periodic node-status line and a dangling-list sweep report.
package matometrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds every Prometheus collector the framework publishes.
type Metrics struct {
	ConnectedPeers     prometheus.Gauge
	LocalModules       prometheus.Gauge
	RemoteModules      prometheus.Gauge
	ActiveSubscriptions prometheus.Gauge
	DanglingDescriptors prometheus.Gauge
	PostsTotal          *prometheus.CounterVec
	DeliveriesTotal     *prometheus.CounterVec
	ReconnectAttempts   *prometheus.CounterVec
	RedistributeQueueDepth prometheus.Gauge
}

// New returns the process-wide Metrics singleton, registering every
// collector on first call.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			ConnectedPeers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mato_connected_peers",
				Help: "Number of peer nodes currently connected.",
			}),
			LocalModules: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mato_local_modules",
				Help: "Number of module instances hosted on this node.",
			}),
			RemoteModules: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mato_remote_modules",
				Help: "Number of module instances known on remote nodes.",
			}),
			ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mato_active_subscriptions",
				Help: "Number of live subscriptions across all channels.",
			}),
			DanglingDescriptors: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mato_dangling_descriptors",
				Help: "Number of payload descriptors detached from a torn-down channel but still borrowed.",
			}),
			PostsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mato_posts_total",
				Help: "Total post_data calls processed by the redistribution loop.",
			}, []string{"node"}),
			DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mato_deliveries_total",
				Help: "Total subscription callback deliveries, by kind.",
			}, []string{"kind"}),
			ReconnectAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mato_reconnect_attempts_total",
				Help: "Total outbound reconnect attempts, by peer.",
			}, []string{"peer"}),
			RedistributeQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mato_redistribute_queue_depth",
				Help: "Current depth of the redistribution loop's post queue.",
			}),
		}
	})
	return instance
}

// Server is a dedicated HTTP server exposing /metrics, grounded in the
// teacher's MetricsServer (a standalone server distinct from its own
// application HTTP stack, which Mato has none of).
type Server struct {
	addr   string
	server *http.Server
}

// NewServer returns a metrics server bound to addr (e.g. ":9600").
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Run starts serving /metrics and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("mato: metrics server: %w", err)
		}
		return nil
	}
}
