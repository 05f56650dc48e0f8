// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package statlog is a tiny diagnostic-logging shim for the
// aggregation driver: state created, combine invoked, finalize
// invoked. It never affects the pure, deterministic aggregation
// result; if no logger is configured, it writes nothing.
package statlog

import "log"

// Logger wraps an optional *log.Logger. The zero value discards every
// message, mirroring tenant.Manager's "logger is the output ... If
// logger is nil, no output is logged" convention.
type Logger struct {
	l *log.Logger
}

// Logf writes a diagnostic message if a logger is configured.
func (s *Logger) Logf(format string, args ...any) {
	if s == nil || s.l == nil {
		return
	}
	s.l.Printf(format, args...)
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger is an option that can be passed to a driver constructor
// to have it log diagnostic information. If no logger is set, the
// driver will not write out any diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Logger) {
		s.l = l
	}
}

// New builds a Logger from a list of options, in the style of
// tenant.Manager's NewManager(..., opts ...Option) convention.
func New(opts ...Option) *Logger {
	s := &Logger{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
