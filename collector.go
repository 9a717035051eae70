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

import "context"

// Collector represents a Zipkin trace collector, which is probably a set of
// remote endpoints.
//
// Collect delivers one batch of spans and returns only once the backend has
// acknowledged or rejected it. Callers wanting asynchronous delivery run it
// in their own goroutine. Ownership of the spans passes to the collector; a
// failed call leaves them untouched so the batch may be submitted again.
type Collector interface {
	Collect(ctx context.Context, spans ...*Span) error
	Close() error
}

// NopCollector implements Collector but performs no work.
type NopCollector struct{}

// Collect implements Collector.
func (NopCollector) Collect(context.Context, ...*Span) error { return nil }

// Close implements Collector.
func (NopCollector) Close() error { return nil }

// MultiCollector implements Collector by sending spans to all collectors.
type MultiCollector []Collector

// Collect implements Collector.
func (c MultiCollector) Collect(ctx context.Context, spans ...*Span) error {
	return c.aggregateErrors(func(coll Collector) error { return coll.Collect(ctx, spans...) })
}

// Close implements Collector.
func (c MultiCollector) Close() error {
	return c.aggregateErrors(func(coll Collector) error { return coll.Close() })
}

func (c MultiCollector) aggregateErrors(f func(c Collector) error) error {
	var errs MultiError
	for _, collector := range c {
		if err := f(collector); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
