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
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
)

// ticksPerMicrosecond converts the nanosecond ticks of time.Time.UnixNano,
// which already count from 1970-01-01T00:00:00Z, to microseconds.
const ticksPerMicrosecond = int64(time.Microsecond / time.Nanosecond)

// ThriftContentType is the content type of EncodeSpans payloads.
const ThriftContentType = "application/x-thrift"

// toMicroseconds returns t as microseconds since the epoch, truncated toward
// zero. The zero time encodes as 0.
func toMicroseconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / ticksPerMicrosecond
}

// EncodeSpans serializes spans as a thrift binary protocol list of zipkin
// Span structs, in the order given.
func EncodeSpans(spans []*Span) ([]byte, error) {
	if len(spans) == 0 {
		return nil, ErrNoSpans
	}
	buf := thrift.NewTMemoryBuffer()
	w := &spanWriter{
		ctx: context.Background(),
		p:   thrift.NewTBinaryProtocolConf(buf, &thrift.TConfiguration{}),
	}
	w.check(w.p.WriteListBegin(w.ctx, thrift.STRUCT, len(spans)))
	for i, s := range spans {
		if s == nil {
			return nil, &EncodingError{Field: fmt.Sprintf("spans[%d]", i), Reason: "nil span"}
		}
		if err := w.writeSpan(s); err != nil {
			return nil, err
		}
	}
	w.check(w.p.WriteListEnd(w.ctx))
	w.check(w.p.Flush(w.ctx))
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

// spanWriter keeps the first protocol error so the struct writers below can
// stay linear.
type spanWriter struct {
	ctx context.Context
	p   thrift.TProtocol
	err error
}

func (w *spanWriter) check(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *spanWriter) fieldBegin(name string, typ thrift.TType, id int16) {
	w.check(w.p.WriteFieldBegin(w.ctx, name, typ, id))
}

func (w *spanWriter) fieldEnd() {
	w.check(w.p.WriteFieldEnd(w.ctx))
}

func (w *spanWriter) i64Field(name string, id int16, v int64) {
	w.fieldBegin(name, thrift.I64, id)
	w.check(w.p.WriteI64(w.ctx, v))
	w.fieldEnd()
}

func (w *spanWriter) stringField(name string, id int16, v string) {
	w.fieldBegin(name, thrift.STRING, id)
	w.check(w.p.WriteString(w.ctx, v))
	w.fieldEnd()
}

func (w *spanWriter) writeSpan(s *Span) error {
	name := s.Name
	if name == "" {
		name = DefaultName
	}

	w.check(w.p.WriteStructBegin(w.ctx, "Span"))
	w.i64Field("trace_id", 1, int64(s.Header.TraceID.Low))
	w.stringField("name", 3, name)
	w.i64Field("id", 4, int64(s.Header.SpanID))
	if s.Header.ParentID != nil {
		w.i64Field("parent_id", 5, int64(*s.Header.ParentID))
	}

	w.fieldBegin("annotations", thrift.LIST, 6)
	w.check(w.p.WriteListBegin(w.ctx, thrift.STRUCT, len(s.annotations)))
	for _, a := range s.annotations {
		w.writeAnnotation(a, s.ServiceName)
	}
	w.check(w.p.WriteListEnd(w.ctx))
	w.fieldEnd()

	if len(s.binaryAnnotations) > 0 {
		w.fieldBegin("binary_annotations", thrift.LIST, 8)
		w.check(w.p.WriteListBegin(w.ctx, thrift.STRUCT, len(s.binaryAnnotations)))
		for i, b := range s.binaryAnnotations {
			if err := w.writeBinaryAnnotation(b, s.ServiceName); err != nil {
				err.Field = fmt.Sprintf("binary_annotations[%d](%s).%s", i, b.Key, err.Field)
				return err
			}
		}
		w.check(w.p.WriteListEnd(w.ctx))
		w.fieldEnd()
	}

	w.fieldBegin("debug", thrift.BOOL, 9)
	w.check(w.p.WriteBool(w.ctx, s.Header.Debug))
	w.fieldEnd()

	if !s.Timestamp.IsZero() {
		w.i64Field("timestamp", 10, toMicroseconds(s.Timestamp))
	}
	if s.Duration != 0 {
		w.i64Field("duration", 11, s.Duration)
	}
	if s.Header.TraceID.High != 0 {
		w.i64Field("trace_id_high", 12, int64(s.Header.TraceID.High))
	}

	w.check(w.p.WriteFieldStop(w.ctx))
	w.check(w.p.WriteStructEnd(w.ctx))
	return w.err
}

func (w *spanWriter) writeAnnotation(a Annotation, serviceName string) {
	w.check(w.p.WriteStructBegin(w.ctx, "Annotation"))
	w.i64Field("timestamp", 1, toMicroseconds(a.Timestamp))
	w.stringField("value", 2, a.Value)
	if a.Endpoint != nil {
		w.fieldBegin("host", thrift.STRUCT, 3)
		w.writeEndpoint(a.Endpoint, serviceName)
		w.fieldEnd()
	}
	w.check(w.p.WriteFieldStop(w.ctx))
	w.check(w.p.WriteStructEnd(w.ctx))
}

func (w *spanWriter) writeBinaryAnnotation(b BinaryAnnotation, serviceName string) *EncodingError {
	typ, value, err := binaryValue(b.Value)
	if err != nil {
		return err
	}
	w.check(w.p.WriteStructBegin(w.ctx, "BinaryAnnotation"))
	w.stringField("key", 1, b.Key)
	w.fieldBegin("value", thrift.STRING, 2)
	w.check(w.p.WriteBinary(w.ctx, value))
	w.fieldEnd()
	w.fieldBegin("annotation_type", thrift.I32, 3)
	w.check(w.p.WriteI32(w.ctx, int32(typ)))
	w.fieldEnd()
	if b.Endpoint != nil {
		w.fieldBegin("host", thrift.STRUCT, 4)
		w.writeEndpoint(b.Endpoint, serviceName)
		w.fieldEnd()
	}
	w.check(w.p.WriteFieldStop(w.ctx))
	w.check(w.p.WriteStructEnd(w.ctx))
	return nil
}

func (w *spanWriter) writeEndpoint(e *Endpoint, serviceName string) {
	if e.ServiceName != "" {
		serviceName = e.ServiceName
	}
	w.check(w.p.WriteStructBegin(w.ctx, "Endpoint"))
	w.fieldBegin("ipv4", thrift.I32, 1)
	w.check(w.p.WriteI32(w.ctx, e.ipv4()))
	w.fieldEnd()
	w.fieldBegin("port", thrift.I16, 2)
	w.check(w.p.WriteI16(w.ctx, int16(e.Port)))
	w.fieldEnd()
	w.stringField("service_name", 3, serviceName)
	if ip6 := e.IPv6.To16(); ip6 != nil && e.IPv6.To4() == nil {
		w.fieldBegin("ipv6", thrift.STRING, 4)
		w.check(w.p.WriteBinary(w.ctx, ip6))
		w.fieldEnd()
	}
	w.check(w.p.WriteFieldStop(w.ctx))
	w.check(w.p.WriteStructEnd(w.ctx))
}

// binaryValue returns the big endian wire form of a binary annotation value.
func binaryValue(v interface{}) (AnnotationType, []byte, *EncodingError) {
	switch v := v.(type) {
	case bool:
		if v {
			return AnnotationTypeBool, []byte{1}, nil
		}
		return AnnotationTypeBool, []byte{0}, nil
	case []byte:
		return AnnotationTypeBytes, v, nil
	case int16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return AnnotationTypeI16, b, nil
	case int32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return AnnotationTypeI32, b, nil
	case int64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return AnnotationTypeI64, b, nil
	case int:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return AnnotationTypeI64, b, nil
	case float64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
		return AnnotationTypeDouble, b, nil
	case string:
		return AnnotationTypeString, []byte(v), nil
	case nil:
		return 0, nil, &EncodingError{Field: "value", Reason: "nil value"}
	}
	return 0, nil, &EncodingError{Field: "value", Reason: fmt.Sprintf("unsupported type %T", v)}
}
