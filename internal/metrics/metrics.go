// Package metrics holds the Prometheus collectors of the event toolkit.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics owns a private registry so tests and multiple runners do not collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	EventsDecoded *prometheus.CounterVec
	EventFailures *prometheus.CounterVec
	RPCDuration   *prometheus.HistogramVec
	SyncedIndex   *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ces_events_decoded_total",
			Help: "Events decoded, by contract and event name",
		}, []string{"contract", "event"}),
		EventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ces_event_failures_total",
			Help: "Events that could not be fetched or decoded, by contract and failure kind",
		}, []string{"contract", "kind"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ces_rpc_duration_seconds",
			Help:    "Latency of node RPC calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
		SyncedIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ces_synced_event_index",
			Help: "Next event index to sync, by contract",
		}, []string{"contract"}),
	}
	m.Registry.MustRegister(m.EventsDecoded, m.EventFailures, m.RPCDuration, m.SyncedIndex)
	return m
}

func (m *Metrics) ObserveRPC(method string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RPCDuration.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) EventDecoded(contract, event string) {
	if m == nil {
		return
	}
	m.EventsDecoded.WithLabelValues(contract, event).Inc()
}

func (m *Metrics) EventFailed(contract, kind string) {
	if m == nil {
		return
	}
	m.EventFailures.WithLabelValues(contract, kind).Inc()
}

func (m *Metrics) Synced(contract string, next uint64) {
	if m == nil {
		return
	}
	m.SyncedIndex.WithLabelValues(contract).Set(float64(next))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
