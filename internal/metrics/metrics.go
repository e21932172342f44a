package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iperf-harness/internal/events"
	"iperf-harness/internal/logger"
)

const namespace = "iperf_harness"

// Collector は専用のレジストリとライフサイクルのカウンタを保持する
type Collector struct {
	registry *prometheus.Registry

	iterations       *prometheus.CounterVec
	portRotations    prometheus.Counter
	serverAttempts   *prometheus.CounterVec
	consecutiveFails prometheus.Gauge
	supervisorStops  *prometheus.CounterVec
	clientAttempts   *prometheus.CounterVec
	pidfileOps       *prometheus.CounterVec
}

// New は全てのカウンタを登録したCollectorを作成する
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Harness iterations by outcome",
		}, []string{"result"}),
		portRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_rotations_total",
			Help:      "Port argument rewrites between iterations",
		}),
		serverAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_attempts_total",
			Help:      "Server run attempts by outcome",
		}, []string{"result"}),
		consecutiveFails: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_consecutive_failures",
			Help:      "Current run of consecutive server failures",
		}),
		supervisorStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_stops_total",
			Help:      "Supervisor run-loop exits by reason",
		}, []string{"reason"}),
		clientAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_attempts_total",
			Help:      "Client run attempts by outcome",
		}, []string{"result"}),
		pidfileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pidfile_operations_total",
			Help:      "PID file creations and removals",
		}, []string{"op"}),
	}

	c.registry.MustRegister(
		c.iterations,
		c.portRotations,
		c.serverAttempts,
		c.consecutiveFails,
		c.supervisorStops,
		c.clientAttempts,
		c.pidfileOps,
	)
	return c
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Observe はイベントからカウンタを更新する
// events.Handler として登録して使う
func (c *Collector) Observe(e events.Event) {
	switch e.Type {
	case events.EventIterationFinish:
		c.iterations.WithLabelValues(result(e.Data.Success)).Inc()
	case events.EventPortRotated:
		c.portRotations.Inc()
	case events.EventServerAttempt:
		c.serverAttempts.WithLabelValues(result(e.Data.Success)).Inc()
		c.consecutiveFails.Set(float64(e.Data.Consecutive))
	case events.EventSupervisorStop:
		c.supervisorStops.WithLabelValues(string(e.Data.Reason)).Inc()
	case events.EventClientAttempt:
		c.clientAttempts.WithLabelValues(result(e.Data.Success)).Inc()
	case events.EventPidfileCreated:
		c.pidfileOps.WithLabelValues("create").Inc()
	case events.EventPidfileRemoved:
		c.pidfileOps.WithLabelValues("remove").Inc()
	}
}

// Handler はレジストリをPrometheus形式で返すハンドラ
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve は ctx が終了するまで addr で /metrics を公開する
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics", "serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server on "+strconv.Quote(addr))
	}
	return nil
}
