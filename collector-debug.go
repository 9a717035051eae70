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
	"bufio"
	"context"
	"io"
	"os"
	"sync"
)

// nilSpanLine stands in for a nil span so every input still gets a line.
const nilSpanLine = "<nil>"

// DebugCollector implements Collector by printing one line per span, nil
// spans included. It is meant for local development and never fails.
type DebugCollector struct {
	logger Logger
	mu     sync.Mutex
	w      io.Writer
}

// DebugOption sets a parameter for the DebugCollector
type DebugOption func(c *DebugCollector)

// DebugWriter sets the sink spans are printed to. Defaults to os.Stdout.
func DebugWriter(w io.Writer) DebugOption {
	return func(c *DebugCollector) { c.w = w }
}

// DebugLogger sets the logger write failures are reported to.
func DebugLogger(logger Logger) DebugOption {
	return func(c *DebugCollector) { c.logger = logger }
}

// NewDebugCollector returns a DebugCollector.
func NewDebugCollector(options ...DebugOption) *DebugCollector {
	c := &DebugCollector{
		logger: NewNopLogger(),
		w:      os.Stdout,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Collect implements Collector.
func (c *DebugCollector) Collect(_ context.Context, spans ...*Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bw := bufio.NewWriter(c.w)
	for _, s := range spans {
		if s == nil {
			bw.WriteString(nilSpanLine)
		} else {
			bw.WriteString(s.String())
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		_ = c.logger.Log("msg", "debug collector write failed", "err", err.Error())
	}
	return nil
}

// Close implements Collector.
func (c *DebugCollector) Close() error { return nil }
