// File: sched/options.go
// Package sched defines functional options for scheduler construction.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import "go.uber.org/zap"

// Option customizes scheduler initialization.
type Option func(*Scheduler)

// WithLogger routes scheduler, worker, and server diagnostics through
// the given logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}
