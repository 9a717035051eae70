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
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCollector keeps every batch it is handed.
type recordingCollector struct {
	mu      sync.Mutex
	batches [][]*Span
	err     error
	closed  bool
}

func (c *recordingCollector) Collect(_ context.Context, spans ...*Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, spans)
	return c.err
}

func (c *recordingCollector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingCollector) spans() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Span
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *recordingCollector) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func eventually(f func() bool, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if f() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return errors.New("condition not met in time")
}

func TestDebugCollectorWritesOneLinePerSpan(t *testing.T) {
	var buf bytes.Buffer
	c := NewDebugCollector(DebugWriter(&buf))

	spans := []*Span{
		makeSpan(1, 1, nil, "first"),
		nil,
		makeSpan(1, 2, nil, "second"),
		makeSpan(1, 3, nil, "third"),
	}
	require.NoError(t, c.Collect(context.Background(), spans...))
	require.NoError(t, c.Collect(context.Background()))
	require.NoError(t, c.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "<nil>", lines[1])
	for i, s := range spans {
		if s != nil {
			assert.Equal(t, s.String(), lines[i])
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDebugCollectorNeverFails(t *testing.T) {
	var logged int
	c := NewDebugCollector(DebugWriter(failingWriter{}), DebugLogger(LoggerFunc(func(...interface{}) error {
		logged++
		return nil
	})))
	assert.NoError(t, c.Collect(context.Background(), makeSpan(1, 2, nil, "op")))
	assert.Equal(t, 1, logged)
}

func TestMultiCollector(t *testing.T) {
	failure := errors.New("backend down")
	ok, bad := &recordingCollector{}, &recordingCollector{err: failure}
	c := MultiCollector{ok, bad}

	err := c.Collect(context.Background(), makeSpan(1, 2, nil, "op"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure))
	assert.Len(t, ok.spans(), 1)
	assert.Len(t, bad.spans(), 1)

	require.NoError(t, c.Close())
	assert.True(t, ok.closed)
	assert.True(t, bad.closed)

	assert.NoError(t, NopCollector{}.Collect(context.Background()))
}

func TestBatchCollectorFlushesOnSize(t *testing.T) {
	rec := &recordingCollector{}
	c := NewBatchCollector(rec, BatchSize(2), BatchInterval(time.Hour))

	require.NoError(t, c.Collect(context.Background(), makeSpan(1, 1, nil, "a")))
	require.NoError(t, c.Collect(context.Background(), makeSpan(1, 2, nil, "b")))
	require.NoError(t, eventually(func() bool { return rec.batchCount() == 1 }, time.Second))

	require.NoError(t, c.Collect(context.Background(), makeSpan(1, 3, nil, "c")))
	require.NoError(t, c.Close())

	spans := rec.spans()
	require.Len(t, spans, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, spans[i].Name)
	}
	assert.True(t, rec.closed)
	assert.Equal(t, ErrCollectorClosed, c.Collect(context.Background(), makeSpan(1, 4, nil, "d")))
}

func TestBatchCollectorFlushesOnInterval(t *testing.T) {
	rec := &recordingCollector{}
	c := NewBatchCollector(rec, BatchSize(100), BatchInterval(50*time.Millisecond))
	defer c.Close()

	require.NoError(t, c.Collect(context.Background(), makeSpan(1, 1, nil, "a")))
	assert.NoError(t, eventually(func() bool { return len(rec.spans()) == 1 }, time.Second))
}

func TestBatchCollectorQueueFull(t *testing.T) {
	rec := &recordingCollector{}
	c := NewBatchCollector(rec, BatchSize(10), BatchMaxBacklog(10), BatchInterval(time.Hour))

	spans := make([]*Span, 8)
	for i := range spans {
		spans[i] = makeSpan(1, uint64(i+1), nil, "op")
	}
	require.NoError(t, c.Collect(context.Background(), spans...))
	// the whole batch is rejected, not a part of it.
	assert.Equal(t, ErrQueueFull, c.Collect(context.Background(), spans[:3]...))
	assert.Equal(t, ErrNoSpans, c.Collect(context.Background()))

	require.NoError(t, c.Close())
	assert.Len(t, rec.spans(), 8)
}

func TestBatchCollectorSnapshotsSpans(t *testing.T) {
	rec := &recordingCollector{}
	c := NewBatchCollector(rec, BatchInterval(time.Hour))

	span := makeSpan(1, 1, nil, "op")
	require.NoError(t, c.Collect(context.Background(), span))
	span.Record(NewAnnotation("late", time.Now()))
	require.NoError(t, c.Close())

	spans := rec.spans()
	require.Len(t, spans, 1)
	assert.Len(t, spans[0].Annotations(), 1)
}

func TestBatchCollectorReportsFailures(t *testing.T) {
	failure := errors.New("backend down")
	rec := &recordingCollector{err: failure}
	m := new(mockLogger)
	m.On("Log", "err", failure.Error(), "spans", 1).Return(nil).Once()
	c := NewBatchCollector(rec, BatchLogger(m), BatchInterval(time.Hour))

	require.NoError(t, c.Collect(context.Background(), makeSpan(1, 1, nil, "op")))
	err := c.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure))

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr), "want BatchError, have %v", err)
	require.Len(t, batchErr.Spans, 1)
	assert.Equal(t, "op", batchErr.Spans[0].Name)
	m.AssertExpectations(t)
}

func TestBatchCollectorReturnsEveryFailedBatch(t *testing.T) {
	failure := errors.New("backend down")
	rec := &recordingCollector{err: failure}
	m := new(mockLogger)
	// identical failures are logged once, but each one reaches the caller.
	m.On("Log", "err", failure.Error(), "spans", 1).Return(nil).Once()
	c := NewBatchCollector(rec, BatchLogger(m), BatchSize(1), BatchInterval(time.Hour))

	failed := func() int {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.failed)
	}
	undelivered := func(err error) []string {
		var errs MultiError
		require.True(t, errors.As(err, &errs), "want MultiError, have %v", err)
		var names []string
		for _, e := range errs {
			var batchErr *BatchError
			require.True(t, errors.As(e, &batchErr), "want BatchError, have %v", e)
			assert.True(t, errors.Is(batchErr, failure))
			for _, s := range batchErr.Spans {
				names = append(names, s.Name)
			}
		}
		return names
	}

	require.NoError(t, c.Collect(context.Background(), makeSpan(1, 1, nil, "first")))
	require.NoError(t, eventually(func() bool { return failed() == 1 }, time.Second))

	// the next call reports the earlier failure and still queues its span.
	err := c.Collect(context.Background(), makeSpan(1, 2, nil, "second"))
	assert.Equal(t, []string{"first"}, undelivered(err))
	require.NoError(t, eventually(func() bool { return failed() == 1 }, time.Second))

	// one flush split into two failing batches.
	require.Error(t, c.Collect(context.Background(), makeSpan(1, 3, nil, "third"), makeSpan(1, 4, nil, "fourth")))
	require.NoError(t, eventually(func() bool { return failed() == 2 }, time.Second))

	assert.Equal(t, []string{"third", "fourth"}, undelivered(c.Close()))
	assert.Equal(t, 4, rec.batchCount())
	m.AssertExpectations(t)
}
