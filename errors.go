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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSpans is returned when a collector or the encoder is given no spans.
	ErrNoSpans = errors.New("no spans to collect")
	// ErrCollectorClosed is returned by Collect after Close.
	ErrCollectorClosed = errors.New("collector closed")
	// ErrQueueFull is returned by a BatchCollector whose backlog is full.
	ErrQueueFull = errors.New("collector queue full")
)

// EncodingError reports a span value that cannot be represented on the wire.
// It is returned before any network I/O takes place.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("zipkin: cannot encode %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failure of the underlying request or producer call.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("zipkin: transport to %s failed: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CollectionError reports a request that reached the backend but was not
// accepted. Code holds the HTTP status code or the broker error code.
type CollectionError struct {
	Backend string
	Code    int
	Status  string
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("zipkin: %s rejected spans (code: %d, status: %s)", e.Backend, e.Code, e.Status)
}

// BatchError reports a batch a BatchCollector failed to hand to the wrapped
// collector. Spans holds the undelivered batch so it can be submitted again.
type BatchError struct {
	Spans []*Span
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("zipkin: batch of %d spans not delivered: %v", len(e.Spans), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// MultiError holds the failures of a MultiCollector or the undelivered
// batches of a BatchCollector.
type MultiError []error

func (m MultiError) Error() string {
	msgs := make([]string, len(m))
	for i, err := range m {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is reports whether any of the collected errors matches target.
func (m MultiError) Is(target error) bool {
	for _, err := range m {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As finds the first collected error that matches target.
func (m MultiError) As(target interface{}) bool {
	for _, err := range m {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
