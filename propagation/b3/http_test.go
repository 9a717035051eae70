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

package b3_test

import (
	stdHTTP "net/http"
	"testing"

	"github.com/opentracing/opentracing-go"
	zipkin "github.com/openzipkin/zipkin-go"
	zb3 "github.com/openzipkin/zipkin-go/propagation/b3"
	"github.com/openzipkin/zipkin-go/reporter/recorder"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-tracer"
	"github.com/openzipkin-contrib/zipkin-go-tracer/propagation/b3"
)

func TestHTTPRoundTrip(t *testing.T) {
	parent := uint64(0x0a)
	want := zipkintracer.NewTraceHeader(0x1234, 0x5678, &parent, false)

	c := stdHTTP.Header{}
	if err := b3.InjectHTTP(want, opentracing.HTTPHeadersCarrier(c)); err != nil {
		t.Fatalf("Inject failed: %+v", err)
	}

	if want, have := "0000000000001234", c.Get(zb3.TraceID); want != have {
		t.Errorf("TraceID header want %s, have %s", want, have)
	}
	if want, have := "1", c.Get(zb3.Sampled); want != have {
		t.Errorf("Sampled header want %s, have %s", want, have)
	}
	if have := c.Get(zb3.Flags); have != "" {
		t.Errorf("Flags header want empty, have %s", have)
	}

	have, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))
	if err != nil {
		t.Fatalf("Extract failed: %+v", err)
	}
	if !want.Equal(have) {
		t.Errorf("TraceHeader want %s, have %s", want, have)
	}
}

func TestHTTPRoundTripDebug(t *testing.T) {
	want := zipkintracer.NewTraceHeader(1, 2, nil, true)

	c := stdHTTP.Header{}
	if err := b3.InjectHTTP(want, opentracing.HTTPHeadersCarrier(c)); err != nil {
		t.Fatalf("Inject failed: %+v", err)
	}

	if want, have := "1", c.Get(zb3.Flags); want != have {
		t.Errorf("Flags want %s, have %s", want, have)
	}
	// debug implies sampled, so the sampled header is not sent.
	if have := c.Get(zb3.Sampled); have != "" {
		t.Errorf("Sampled want empty, have %s", have)
	}

	have, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))
	if err != nil {
		t.Fatalf("Extract failed: %+v", err)
	}
	if !have.Debug || !have.IsRoot() {
		t.Errorf("TraceHeader want debug root, have %s", have)
	}
}

func TestHTTPExtractLowercaseKeys(t *testing.T) {
	c := opentracing.TextMapCarrier{
		"x-b3-traceid": "0000000000000001",
		"x-b3-spanid":  "0000000000000002",
	}

	have, err := b3.ExtractHTTP(c)
	if err != nil {
		t.Fatalf("Extract failed: %+v", err)
	}
	if want := zipkintracer.NewTraceHeader(1, 2, nil, false); !want.Equal(have) {
		t.Errorf("TraceHeader want %s, have %s", want, have)
	}
}

func TestHTTPExtractFlagsOnly(t *testing.T) {
	c := stdHTTP.Header{}
	c.Set(zb3.Flags, "1")

	_, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))

	if want, have := opentracing.ErrSpanContextNotFound, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPExtractEmpty(t *testing.T) {
	_, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(stdHTTP.Header{}))

	if want, have := opentracing.ErrSpanContextNotFound, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPExtractSampledErrors(t *testing.T) {
	c := stdHTTP.Header{}
	c.Set(zb3.Sampled, "2")

	_, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))

	if want, have := zb3.ErrInvalidSampledHeader, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPExtractTraceIDError(t *testing.T) {
	c := stdHTTP.Header{}
	c.Set(zb3.TraceID, "invalid_data")

	_, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))

	if want, have := zb3.ErrInvalidTraceIDHeader, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPExtractTraceIDOnlyError(t *testing.T) {
	c := stdHTTP.Header{}
	c.Set(zb3.TraceID, "1")

	_, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))

	if want, have := zb3.ErrInvalidScope, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPExtractInvalidParentIDError(t *testing.T) {
	c := stdHTTP.Header{}
	c.Set(zb3.TraceID, "1")
	c.Set(zb3.SpanID, "2")
	c.Set(zb3.ParentSpanID, "invalid_data")

	_, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))

	if want, have := zb3.ErrInvalidParentSpanIDHeader, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPInvalidCarrier(t *testing.T) {
	if want, have := opentracing.ErrInvalidCarrier, b3.InjectHTTP(zipkintracer.NewTraceHeader(1, 2, nil, false), "carrier"); want != have {
		t.Errorf("Inject Error want %+v, have %+v", want, have)
	}

	_, err := b3.ExtractHTTP(42)
	if want, have := opentracing.ErrInvalidCarrier, err; want != have {
		t.Errorf("Extract Error want %+v, have %+v", want, have)
	}
}

func TestHTTPInjectEmptyHeaderError(t *testing.T) {
	err := b3.InjectHTTP(zipkintracer.TraceHeader{}, opentracing.HTTPHeadersCarrier(stdHTTP.Header{}))

	if want, have := zb3.ErrEmptyContext, err; want != have {
		t.Errorf("Inject Error want %+v, have %+v", want, have)
	}
}

func TestHTTPExtractScope(t *testing.T) {
	recorder := &recorder.ReporterRecorder{}
	defer recorder.Close()

	tracer, err := zipkin.NewTracer(recorder, zipkin.WithTraceID128Bit(true))
	if err != nil {
		t.Fatalf("Tracer failed: %+v", err)
	}

	iterations := 100
	for i := 0; i < iterations; i++ {
		var (
			parent = tracer.StartSpan("parent")
			child  = tracer.StartSpan("child", zipkin.Parent(parent.Context()))
			want   = zipkintracer.HeaderFromContext(child.Context())
		)

		c := stdHTTP.Header{}
		if err := b3.InjectHTTP(want, opentracing.HTTPHeadersCarrier(c)); err != nil {
			t.Fatalf("Inject failed: %+v", err)
		}

		have, err := b3.ExtractHTTP(opentracing.HTTPHeadersCarrier(c))
		if err != nil {
			t.Fatalf("Extract failed: %+v", err)
		}
		if !want.Equal(have) {
			t.Errorf("TraceHeader want %s, have %s", want, have)
		}

		child.Finish()
		parent.Finish()
	}

	if want, have := 2*iterations, len(recorder.Flush()); want != have {
		t.Errorf("Recorded Span Count want %d, have %d", want, have)
	}
}
