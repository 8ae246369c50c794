// Package metrics exposes Prometheus instrumentation for decision cycles,
// the result cache, market data providers and the risk engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

const namespace = "corepipe"

// Step names a stage of the decision cycle
type Step string

const (
	StepFetch    Step = "fetch"
	StepScore    Step = "score"
	StepDecide   Step = "decide"
	StepAllocate Step = "allocate"
	StepGate     Step = "gate"
	StepBrief    Step = "brief"
	StepRisk     Step = "risk"
)

// Result is the outcome label of a step or cycle
type Result string

const (
	ResultSuccess Result = "success"
	ResultError   Result = "error"
	ResultCached  Result = "cached"
)

// Registry holds every corepipe collector on its own Prometheus registry
type Registry struct {
	reg *prometheus.Registry

	StepDuration *prometheus.HistogramVec
	Cycles       *prometheus.CounterVec
	Decisions    *prometheus.CounterVec
	SlotsActive  prometheus.Gauge
	SlotsOpen    prometheus.Gauge

	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	CacheHitRatio prometheus.Gauge

	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	PortfolioValue prometheus.Gauge
	RiskScore      prometheus.Gauge
	VaRPct         prometheus.Gauge
}

// NewRegistry creates and registers all collectors
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of each decision cycle step in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"step", "result"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Decision cycles by result",
			},
			[]string{"result"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Decisions produced by action",
			},
			[]string{"action"},
		),
		SlotsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_active",
			Help:      "Active slots after the last cycle",
		}),
		SlotsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_open",
			Help:      "Free slots after the last cycle",
		}),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits by cache",
			},
			[]string{"cache"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache misses by cache",
			},
			[]string{"cache"},
		),
		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_hit_ratio",
			Help:      "Cache hit ratio across all caches (0.0 to 1.0)",
		}),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Market data provider calls by provider and status",
			},
			[]string{"provider", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Market data provider call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Current value of the core book",
		}),
		RiskScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Ordinal risk score of the core book",
		}),
		VaRPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "var_1d_pct",
			Help:      "One-day value at risk in percent of book value",
		}),
	}

	r.reg.MustRegister(
		r.StepDuration,
		r.Cycles,
		r.Decisions,
		r.SlotsActive,
		r.SlotsOpen,
		r.CacheHits,
		r.CacheMisses,
		r.CacheHitRatio,
		r.ProviderRequests,
		r.ProviderLatency,
		r.PortfolioValue,
		r.RiskScore,
		r.VaRPct,
	)
	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// StepTimer tracks execution time of one step
type StepTimer struct {
	registry *Registry
	step     Step
	start    time.Time
}

// StartStep begins timing a step
func (r *Registry) StartStep(step Step) *StepTimer {
	return &StepTimer{registry: r, step: step, start: time.Now()}
}

// Stop records the step duration with its result
func (t *StepTimer) Stop(result Result) {
	d := time.Since(t.start)
	t.registry.StepDuration.WithLabelValues(string(t.step), string(result)).Observe(d.Seconds())

	log.Debug().
		Str("step", string(t.step)).
		Str("result", string(result)).
		Dur("duration", d).
		Msg("Cycle step completed")
}

// RecordCycle counts a finished cycle
func (r *Registry) RecordCycle(result Result) {
	r.Cycles.WithLabelValues(string(result)).Inc()
}

// RecordDecision counts one decision
func (r *Registry) RecordDecision(action string) {
	r.Decisions.WithLabelValues(action).Inc()
}

// SetSlots publishes allocator occupancy
func (r *Registry) SetSlots(active, open int) {
	r.SlotsActive.Set(float64(active))
	r.SlotsOpen.Set(float64(open))
}

// RecordCacheHit counts a hit on cache
func (r *Registry) RecordCacheHit(cache string) {
	r.CacheHits.WithLabelValues(cache).Inc()
	r.updateCacheHitRatio()
}

// RecordCacheMiss counts a miss on cache
func (r *Registry) RecordCacheMiss(cache string) {
	r.CacheMisses.WithLabelValues(cache).Inc()
	r.updateCacheHitRatio()
}

// ObserveProvider records one market data call
func (r *Registry) ObserveProvider(provider string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.ProviderRequests.WithLabelValues(provider, status).Inc()
	r.ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordRisk publishes the headline numbers of a risk report
func (r *Registry) RecordRisk(value, varPct float64, score int) {
	r.PortfolioValue.Set(value)
	r.VaRPct.Set(varPct)
	r.RiskScore.Set(float64(score))
}

func (r *Registry) updateCacheHitRatio() {
	hits := sumCounters(r.CacheHits)
	misses := sumCounters(r.CacheMisses)
	if total := hits + misses; total > 0 {
		r.CacheHitRatio.Set(hits / total)
	}
}

// sumCounters adds every labelled child of vec
func sumCounters(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err == nil {
			total += pb.GetCounter().GetValue()
		}
	}
	return total
}
