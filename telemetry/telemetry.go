package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry *prometheus.Registry

type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

type NoopStat struct{}

func (n NoopStat) Inc()        {}
func (n NoopStat) Dec()        {}
func (n NoopStat) Add(float64) {}
func (n NoopStat) Set(float64) {}

// Initialize swaps the noop metrics for real prometheus collectors. Without
// it every metric stays a no-op, which keeps library users free of the
// prometheus default registry.
func Initialize() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	PollCycles = NewCounter("poll_cycles_total", "Completed logger-follow poll cycles")
	OperationsDispatched = NewCounter("operations_dispatched_total", "Document operations handed to at least the matching pass")
	RecordsIgnored = NewCounter("records_ignored_total", "Administrative log records skipped without dispatch")
	DecodeFailures = NewCounter("decode_failures_total", "Log records dropped as malformed")
	HandlerFailures = NewCounter("handler_failures_total", "Handler invocations that returned an error or panicked")
	TransportRetries = NewCounter("transport_retries_total", "Poll cycles that failed on transport and will be retried")
	PositionGaps = NewCounter("position_gaps_total", "Re-bootstraps after the server pruned the held position")
	LastLogTick = NewGauge("last_log_tick", "Last replication log tick fully dispatched")
}

// Handler exposes the registry for scraping; nil until Initialize ran.
func Handler() http.Handler {
	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func NewCounter(name string, help string) Counter {
	if registry == nil {
		return NoopStat{}
	}
	ret := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arango_events",
		Subsystem: "trigger",
		Name:      name,
		Help:      help,
	})
	registry.MustRegister(ret)
	return ret
}

func NewGauge(name string, help string) Gauge {
	if registry == nil {
		return NoopStat{}
	}
	ret := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "arango_events",
		Subsystem: "trigger",
		Name:      name,
		Help:      help,
	})
	registry.MustRegister(ret)
	return ret
}

var (
	PollCycles           Counter = NoopStat{}
	OperationsDispatched Counter = NoopStat{}
	RecordsIgnored       Counter = NoopStat{}
	DecodeFailures       Counter = NoopStat{}
	HandlerFailures      Counter = NoopStat{}
	TransportRetries     Counter = NoopStat{}
	PositionGaps         Counter = NoopStat{}
	LastLogTick          Gauge   = NoopStat{}
)
