// Copyright 2019 The OpenZipkin Authors
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

// Package b3 carries a TraceHeader across process boundaries using the B3
// header convention, over HTTP style text maps and gRPC metadata.
package b3

import (
	"strings"

	"github.com/opentracing/opentracing-go"
	zb3 "github.com/openzipkin/zipkin-go/propagation/b3"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-tracer"
)

const (
	traceIDHeader      = "x-b3-traceid"
	spanIDHeader       = "x-b3-spanid"
	parentSpanIDHeader = "x-b3-parentspanid"
	sampledHeader      = "x-b3-sampled"
	flagsHeader        = "x-b3-flags"
)

// InjectHTTP writes h into carrier, which must be an
// opentracing.TextMapWriter such as opentracing.HTTPHeadersCarrier. A
// header that is being recorded is always sampled, so debug headers send the
// flags header and all others send sampled=1.
func InjectHTTP(h zipkintracer.TraceHeader, carrier interface{}) error {
	c, ok := carrier.(opentracing.TextMapWriter)
	if !ok {
		return opentracing.ErrInvalidCarrier
	}
	if h.TraceID.Empty() || h.SpanID == 0 {
		return zb3.ErrEmptyContext
	}

	c.Set(traceIDHeader, h.TraceID.String())
	c.Set(spanIDHeader, h.SpanID.String())
	if h.ParentID != nil {
		c.Set(parentSpanIDHeader, h.ParentID.String())
	}
	if h.Debug {
		c.Set(flagsHeader, "1")
	} else {
		c.Set(sampledHeader, "1")
	}
	return nil
}

// ExtractHTTP reads a TraceHeader from carrier, which must be an
// opentracing.TextMapReader. Header names are matched case insensitively.
func ExtractHTTP(carrier interface{}) (zipkintracer.TraceHeader, error) {
	c, ok := carrier.(opentracing.TextMapReader)
	if !ok {
		return zipkintracer.TraceHeader{}, opentracing.ErrInvalidCarrier
	}

	var (
		traceID      string
		spanID       string
		parentSpanID string
		sampled      string
		flags        string
	)

	err := c.ForeachKey(func(key, val string) error {
		switch strings.ToLower(key) {
		case traceIDHeader:
			traceID = val
		case spanIDHeader:
			spanID = val
		case parentSpanIDHeader:
			parentSpanID = val
		case sampledHeader:
			sampled = val
		case flagsHeader:
			flags = val
		}
		return nil
	})
	if err != nil {
		return zipkintracer.TraceHeader{}, err
	}

	sc, err := zb3.ParseHeaders(traceID, spanID, parentSpanID, sampled, flags)
	if err != nil {
		return zipkintracer.TraceHeader{}, err
	}
	if sc.TraceID.Empty() {
		return zipkintracer.TraceHeader{}, opentracing.ErrSpanContextNotFound
	}
	return zipkintracer.HeaderFromContext(*sc), nil
}
