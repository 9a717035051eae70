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

	"github.com/openzipkin/zipkin-go/model"
)

// TraceHeader identifies a span within a trace. A header without a ParentID
// is the root of its trace.
type TraceHeader struct {
	TraceID  model.TraceID
	SpanID   model.ID
	ParentID *model.ID
	// Debug forces the backend to retain the trace regardless of sampling.
	Debug bool
}

// NewTraceHeader returns a header for a 64 bit trace id. Pass a nil parentID
// for a root span.
func NewTraceHeader(traceID, spanID uint64, parentID *uint64, debug bool) TraceHeader {
	h := TraceHeader{
		TraceID: model.TraceID{Low: traceID},
		SpanID:  model.ID(spanID),
		Debug:   debug,
	}
	if parentID != nil {
		id := model.ID(*parentID)
		h.ParentID = &id
	}
	return h
}

// IsRoot reports whether the header has no parent.
func (h TraceHeader) IsRoot() bool {
	return h.ParentID == nil
}

// Equal compares headers by value, including the parent id.
func (h TraceHeader) Equal(o TraceHeader) bool {
	if h.TraceID != o.TraceID || h.SpanID != o.SpanID || h.Debug != o.Debug {
		return false
	}
	if h.ParentID == nil || o.ParentID == nil {
		return h.ParentID == nil && o.ParentID == nil
	}
	return *h.ParentID == *o.ParentID
}

func (h TraceHeader) String() string {
	var sb strings.Builder
	sb.WriteString("TraceHeader(traceId:")
	sb.WriteString(h.TraceID.String())
	sb.WriteString(", spanId:")
	sb.WriteString(h.SpanID.String())
	if h.ParentID != nil {
		sb.WriteString(", parentId:")
		sb.WriteString(h.ParentID.String())
	}
	if h.Debug {
		sb.WriteString(", debug:true")
	}
	sb.WriteString(")")
	return sb.String()
}

// SpanContext converts the header into a zipkin-go span context so it can be
// handed to zipkin-go propagation.
func (h TraceHeader) SpanContext() model.SpanContext {
	sc := model.SpanContext{
		TraceID: h.TraceID,
		ID:      h.SpanID,
		Debug:   h.Debug,
	}
	if h.ParentID != nil {
		parent := *h.ParentID
		sc.ParentID = &parent
	}
	return sc
}

// HeaderFromContext builds a header from a zipkin-go span context.
func HeaderFromContext(sc model.SpanContext) TraceHeader {
	h := TraceHeader{
		TraceID: sc.TraceID,
		SpanID:  sc.ID,
		Debug:   sc.Debug,
	}
	if sc.ParentID != nil {
		parent := *sc.ParentID
		h.ParentID = &parent
	}
	return h
}
