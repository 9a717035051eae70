// Copyright 2022 The OpenZipkin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zipkintracer

import (
	"context"
	"sync"
	"time"
)

const (
	defaultBatchInterval    = time.Second
	defaultBatchSize        = 100
	defaultBatchMaxBacklog  = 1000
	defaultErrorLogInterval = time.Minute
)

// BatchCollector implements Collector by queueing spans and handing them to
// another Collector in batches, from a single goroutine. Collect returns as
// soon as the spans are queued. A batch the wrapped collector rejects is not
// retried: it is logged and kept as a *BatchError, and every such error is
// returned, in a MultiError, by the next Collect or by Close.
type BatchCollector struct {
	collector        Collector
	logger           Logger
	errorLogInterval time.Duration
	state            *StateLogger
	batchInterval    time.Duration
	batchSize        int
	maxBacklog       int

	mu      sync.Mutex
	pending []*Span
	failed  MultiError
	closed  bool

	flushc chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

// BatchOption sets a parameter for the BatchCollector
type BatchOption func(c *BatchCollector)

// BatchLogger sets the logger used to report errors in the collection
// process. By default, a no-op logger is used, i.e. no errors are logged
// anywhere. It's important to set this option in a production service.
func BatchLogger(logger Logger) BatchOption {
	return func(c *BatchCollector) { c.logger = logger }
}

// BatchErrorLogInterval sets how often an identical delivery error is logged.
func BatchErrorLogInterval(d time.Duration) BatchOption {
	return func(c *BatchCollector) { c.errorLogInterval = d }
}

// BatchSize sets the number of queued spans that triggers a send. The default
// batch size is 100 spans.
func BatchSize(n int) BatchOption {
	return func(c *BatchCollector) { c.batchSize = n }
}

// BatchInterval sets the maximum duration spans are buffered before they are
// sent. The default batch interval is 1 second.
func BatchInterval(d time.Duration) BatchOption {
	return func(c *BatchCollector) { c.batchInterval = d }
}

// BatchMaxBacklog sets the maximum number of queued spans. Collect rejects a
// batch that does not fit with ErrQueueFull.
func BatchMaxBacklog(n int) BatchOption {
	return func(c *BatchCollector) { c.maxBacklog = n }
}

// NewBatchCollector wraps collector. Closing the BatchCollector flushes the
// queue and closes collector.
func NewBatchCollector(collector Collector, options ...BatchOption) *BatchCollector {
	c := &BatchCollector{
		collector:        collector,
		logger:           NewNopLogger(),
		errorLogInterval: defaultErrorLogInterval,
		batchInterval:    defaultBatchInterval,
		batchSize:        defaultBatchSize,
		maxBacklog:       defaultBatchMaxBacklog,
		flushc:           make(chan struct{}, 1),
		quit:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	if c.batchSize <= 0 {
		c.batchSize = 1
	}
	if c.batchInterval <= 0 {
		c.batchInterval = defaultBatchInterval
	}
	if c.maxBacklog < c.batchSize {
		c.maxBacklog = c.batchSize
	}
	c.state = NewStateLogger(c.logger, c.errorLogInterval)

	go c.loop()
	return c
}

// Collect implements Collector. Either all spans are queued or none are.
// ErrNoSpans, ErrCollectorClosed and ErrQueueFull mean nothing was queued.
// Any other error is a MultiError of batches that failed since the last
// report; the spans passed to this call were still queued.
func (c *BatchCollector) Collect(_ context.Context, spans ...*Span) error {
	if len(spans) == 0 {
		return ErrNoSpans
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}
	if len(c.pending)+len(spans) > c.maxBacklog {
		_ = c.logger.Log("msg", "queue full, rejecting spans.", "size", len(c.pending))
		return ErrQueueFull
	}
	for _, s := range spans {
		if s != nil {
			c.pending = append(c.pending, s.Snapshot())
		}
	}
	if len(c.pending) >= c.batchSize {
		select {
		case c.flushc <- struct{}{}:
		default:
		}
	}
	return c.takeFailures()
}

// takeFailures hands out the batch errors collected so far. c.mu must be
// held.
func (c *BatchCollector) takeFailures() error {
	if len(c.failed) == 0 {
		return nil
	}
	failed := c.failed
	c.failed = nil
	return failed
}

// Close implements Collector. It flushes the queue, closes the wrapped
// collector and returns a MultiError of every batch error not yet reported
// by Collect, followed by the error of closing the wrapped collector.
func (c *BatchCollector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.quit)
	<-c.done

	c.mu.Lock()
	errs := c.failed
	c.failed = nil
	c.mu.Unlock()
	if err := c.collector.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (c *BatchCollector) loop() {
	tick := c.batchInterval / 10
	if tick <= 0 {
		tick = c.batchInterval
	}
	var (
		nextSend = time.Now().Add(c.batchInterval)
		ticker   = time.NewTicker(tick)
		tickc    = ticker.C
	)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.flushc:
			c.flush()
			nextSend = time.Now().Add(c.batchInterval)
		case <-tickc:
			if time.Now().After(nextSend) {
				c.flush()
				nextSend = time.Now().Add(c.batchInterval)
			}
		case <-c.quit:
			c.flush()
			return
		}
	}
}

// flush sends everything queued so far in chunks of at most batchSize and
// records every chunk that could not be delivered.
func (c *BatchCollector) flush() {
	c.mu.Lock()
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()

	for len(queued) > 0 {
		n := c.batchSize
		if n > len(queued) {
			n = len(queued)
		}
		batch := queued[:n]
		queued = queued[n:]

		if err := c.collector.Collect(context.Background(), batch...); err != nil {
			c.state.LogError(err, "spans", len(batch))
			c.mu.Lock()
			c.failed = append(c.failed, &BatchError{Spans: batch, Err: err})
			c.mu.Unlock()
			continue
		}
		c.state.Fixed("msg", "span delivery recovered")
	}
}
