package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/fuelhedge/core/metrics"
)

// PromSink records engine events in Prometheus metrics.
type PromSink struct {
	runs         *prometheus.CounterVec
	solveLatency *prometheus.HistogramVec
	scenarios    prometheus.Counter
	expectedCost prometheus.Gauge
	cvar         prometheus.Gauge
}

// NewPromSink registers engine metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_runs_total",
		Help: "Total number of optimization runs by terminal state",
	}, []string{"state"})
	solveLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hedge_solve_latency_seconds",
		Help:    "Wall-clock duration of co-optimizer solves",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"state", "retried"})
	scenarios := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hedge_scenarios_total",
		Help: "Total number of scenario paths generated",
	})
	expectedCost := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_expected_cost",
		Help: "Expected cost of the last completed run",
	})
	cvar := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_cvar",
		Help: "CVaR of the last completed run",
	})

	s := &PromSink{runs: runs, solveLatency: solveLatency, scenarios: scenarios, expectedCost: expectedCost, cvar: cvar}
	for _, c := range []prometheus.Collector{runs, solveLatency, scenarios, expectedCost, cvar} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// RecordRun increments the run counter and updates the last-run gauges.
func (s *PromSink) RecordRun(rec coremetrics.RunRecord) error {
	s.runs.WithLabelValues(rec.State).Inc()
	if rec.State == "solved" {
		s.expectedCost.Set(rec.ExpectedCost)
		s.cvar.Set(rec.CVaR)
	}
	return nil
}

// RecordSolve observes the solve latency histogram.
func (s *PromSink) RecordSolve(rec coremetrics.SolveRecord) error {
	s.solveLatency.WithLabelValues(rec.State, strconv.FormatBool(rec.Retried)).Observe(rec.Duration.Seconds())
	return nil
}

// RecordScenarioBatch adds the batch size to the scenario counter.
func (s *PromSink) RecordScenarioBatch(rec coremetrics.ScenarioBatch) error {
	s.scenarios.Add(float64(rec.Count))
	return nil
}

// StartPromServer serves the Prometheus scrape endpoint until the context is
// cancelled.
func StartPromServer(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
