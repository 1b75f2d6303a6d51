package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"
)

// Login outcomes tracked by MetricsCollector.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = CodeInvalidCredentials
	OutcomeLocked             = CodeLocked
	OutcomeInactive           = CodeAccountInactive
	OutcomeInvalidInput       = "invalid_input"
	OutcomeError              = CodeInternal
)

type LoginMetrics struct {
	Count       int64
	LastSeen    time.Time
	LastLatency time.Duration
}

// MetricsCollector counts login outcomes. The in-process counters reset on
// restart; the Prometheus series are the durable view.
type MetricsCollector struct {
	metrics map[string]*LoginMetrics
	mu      sync.RWMutex
	now     func() time.Time

	logins   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetricsCollector(reg prometheus.Registerer) (*MetricsCollector, error) {
	logins := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rubric",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rubric",
			Subsystem: "auth",
			Name:      "login_duration_seconds",
			Help:      "Time spent in Authenticate, including password hashing",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	for _, c := range []prometheus.Collector{logins, duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register login metrics: %w", err)
		}
	}

	return &MetricsCollector{
		metrics:  make(map[string]*LoginMetrics),
		now:      time.Now,
		logins:   logins,
		duration: duration,
	}, nil
}

func (mc *MetricsCollector) RecordLogin(outcome string, latency time.Duration) {
	mc.logins.WithLabelValues(outcome).Inc()
	mc.duration.WithLabelValues(outcome).Observe(latency.Seconds())

	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, exists := mc.metrics[outcome]
	if !exists {
		m = &LoginMetrics{}
		mc.metrics[outcome] = m
	}
	m.Count++
	m.LastSeen = mc.now()
	m.LastLatency = latency
}

// Snapshot returns a copy of the current counters keyed by outcome.
func (mc *MetricsCollector) Snapshot() map[string]LoginMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]LoginMetrics, len(mc.metrics))
	for outcome, m := range mc.metrics {
		out[outcome] = *m
	}
	return out
}

// MarshalLogObject lets the collector be logged with zap.Object.
func (mc *MetricsCollector) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for outcome, m := range mc.Snapshot() {
		enc.AddInt64(outcome, m.Count)
	}
	return nil
}

func loginOutcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch KindOf(err) {
	case KindValidation:
		return OutcomeInvalidInput
	case KindAuthentication:
		return CodeOf(err)
	default:
		return OutcomeError
	}
}
