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

package b3

import (
	"github.com/opentracing/opentracing-go"
	zb3 "github.com/openzipkin/zipkin-go/propagation/b3"
	"google.golang.org/grpc/metadata"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-tracer"
)

// InjectGRPC writes h into gRPC metadata.
func InjectGRPC(h zipkintracer.TraceHeader, md *metadata.MD) error {
	if h.TraceID.Empty() || h.SpanID == 0 {
		return zb3.ErrEmptyContext
	}
	sc := h.SpanContext()
	if !h.Debug {
		sampled := true
		sc.Sampled = &sampled
	}
	return zb3.InjectGRPC(md)(sc)
}

// ExtractGRPC reads a TraceHeader from gRPC metadata.
func ExtractGRPC(md *metadata.MD) (zipkintracer.TraceHeader, error) {
	sc, err := zb3.ExtractGRPC(md)()
	if err != nil {
		return zipkintracer.TraceHeader{}, err
	}
	if sc == nil || sc.TraceID.Empty() {
		return zipkintracer.TraceHeader{}, opentracing.ErrSpanContextNotFound
	}
	return zipkintracer.HeaderFromContext(*sc), nil
}
