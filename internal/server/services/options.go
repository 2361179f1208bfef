// Package services contains server-side business logic: the authentication
// engine, its session registry and audit trail, and the device log service
// built on top of them.
package services

import (
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
)

type options struct {
	now     func() time.Time
	logger  logging.Logger
	metrics *metrics.Metrics
}

// Option customizes a service at construction.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics enables Prometheus counters. Without it nothing is counted.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		logger: logging.NewDiscardLogger(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
