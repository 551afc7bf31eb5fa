package mvc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeAbandoned = "abandoned"
	outcomeError     = "error"

	// unknownLabel stands in for controller and action names that did not resolve,
	// so client supplied path segments never become label values.
	unknownLabel = "unknown"
)

type dispatchMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newDispatchMetrics(reg prometheus.Registerer) (*dispatchMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nekoq",
		Subsystem: "mvc",
		Name:      "dispatch_total",
		Help:      "Dispatched requests by controller, action and outcome.",
	}, []string{"controller", "action", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nekoq",
		Subsystem: "mvc",
		Name:      "dispatch_duration_seconds",
		Help:      "Time from dispatch start until the result executed or the error was forwarded.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"controller", "action"})

	if reg == nil {
		return &dispatchMetrics{requests: requests, duration: duration}, nil
	}
	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &dispatchMetrics{requests: requests, duration: duration}, nil
}

func (m *dispatchMetrics) observe(controller, action, outcome string, start time.Time) {
	m.requests.WithLabelValues(controller, action, outcome).Inc()
	m.duration.WithLabelValues(controller, action).Observe(time.Since(start).Seconds())
}
