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
	"strings"
	"time"
)

// DefaultName is used for the service and span name when none is given.
const DefaultName = "Unknown"

// Span is a set of annotations and binary annotations that correspond to a
// single unit of work. A span has a single writer while it is being built and
// must not be modified once it is handed to a Collector.
type Span struct {
	Header      TraceHeader
	Endpoint    *Endpoint
	ServiceName string
	Name        string
	// Duration in microseconds. Zero means unknown and is not encoded.
	Duration int64
	// Timestamp is the start of the span. The zero value is not encoded.
	Timestamp time.Time

	annotations       []Annotation
	binaryAnnotations []BinaryAnnotation
}

// NewSpan creates an empty span. Empty serviceName and name default to
// DefaultName. A nil endpoint is treated as 0.0.0.0:0 for the service.
func NewSpan(header TraceHeader, endpoint *Endpoint, duration int64, serviceName, name string) *Span {
	if serviceName == "" {
		serviceName = DefaultName
	}
	if name == "" {
		name = DefaultName
	}
	if endpoint == nil {
		endpoint = &Endpoint{ServiceName: serviceName}
	}
	return &Span{
		Header:      header,
		Endpoint:    endpoint,
		ServiceName: serviceName,
		Name:        name,
		Duration:    duration,
	}
}

// Record appends an annotation. An annotation without an endpoint is bound to
// the span's endpoint first.
func (s *Span) Record(a Annotation) {
	if a.Endpoint == nil {
		a = a.WithEndpoint(s.Endpoint)
	}
	s.annotations = append(s.annotations, a)
}

// RecordBinary appends a binary annotation, binding it to the span's endpoint
// when it has none.
func (s *Span) RecordBinary(b BinaryAnnotation) {
	if b.Endpoint == nil {
		b = b.WithEndpoint(s.Endpoint)
	}
	s.binaryAnnotations = append(s.binaryAnnotations, b)
}

// Annotations returns the recorded annotations in recording order. The
// returned slice must not be modified.
func (s *Span) Annotations() []Annotation {
	return s.annotations
}

// BinaryAnnotations returns the recorded binary annotations in recording
// order. The returned slice must not be modified.
func (s *Span) BinaryAnnotations() []BinaryAnnotation {
	return s.binaryAnnotations
}

// Snapshot returns a copy of the span that shares no slices with s, so later
// Record calls on s are not visible in the copy.
func (s *Span) Snapshot() *Span {
	if s == nil {
		return nil
	}
	c := *s
	c.annotations = append([]Annotation(nil), s.annotations...)
	c.binaryAnnotations = append([]BinaryAnnotation(nil), s.binaryAnnotations...)
	return &c
}

func (s *Span) String() string {
	var sb strings.Builder
	sb.WriteString("Span(service:")
	sb.WriteString(s.ServiceName)
	sb.WriteString(", name:")
	sb.WriteString(s.Name)
	sb.WriteString(", trace:")
	sb.WriteString(s.Header.String())
	sb.WriteString(", endpoint:")
	sb.WriteString(s.Endpoint.String())
	sb.WriteString(", annotations:[")
	for i, a := range s.annotations {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(a.String())
	}
	if len(s.binaryAnnotations) > 0 {
		sb.WriteString("], binaryAnnotations:[")
		for i, b := range s.binaryAnnotations {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(b.String())
		}
	}
	sb.WriteString("])")
	return sb.String()
}

func snapshotAll(spans []*Span) []*Span {
	out := make([]*Span, len(spans))
	for i, s := range spans {
		out[i] = s.Snapshot()
	}
	return out
}
