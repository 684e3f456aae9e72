// Package redissink ships diagnostics to a capped Redis list so collectors
// outside the process can consume them.
package redissink

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/dormoron/gimme/diagnostic"
	"github.com/redis/go-redis/v9"
)

// Sink appends each diagnostic, JSON encoded, to the tail of a Redis list and
// trims the list to at most MaxLen entries, keeping the newest.
type Sink struct {
	cmd     redis.Cmdable
	key     string
	maxLen  int64
	timeout time.Duration
	onError func(d diagnostic.Diagnostic, err error)
}

type Option func(s *Sink)

// WithMaxLen caps the list length. Zero disables trimming. Default 10000.
func WithMaxLen(n int64) Option {
	return func(s *Sink) {
		s.maxLen = n
	}
}

// WithTimeout bounds each Redis round trip. Default 2s.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		s.timeout = d
	}
}

// WithErrorHandler is called when a diagnostic cannot be encoded or written.
func WithErrorHandler(fn func(d diagnostic.Diagnostic, err error)) Option {
	return func(s *Sink) {
		s.onError = fn
	}
}

func New(cmd redis.Cmdable, key string, opts ...Option) *Sink {
	s := &Sink{
		cmd:     cmd,
		key:     key,
		maxLen:  10000,
		timeout: 2 * time.Second,
		onError: func(d diagnostic.Diagnostic, err error) {
			log.Printf("redissink: failed to record %s: %v", d.ID, err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Record(d diagnostic.Diagnostic) {
	data, err := json.Marshal(d)
	if err != nil {
		s.onError(d, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err = s.cmd.RPush(ctx, s.key, data).Err(); err != nil {
		s.onError(d, err)
		return
	}
	if s.maxLen > 0 {
		if err = s.cmd.LTrim(ctx, s.key, -s.maxLen, -1).Err(); err != nil {
			s.onError(d, err)
		}
	}
}
