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
	"fmt"
	"time"
)

// Core annotation values understood by Zipkin.
const (
	ClientSendValue    = "cs"
	ClientRecvValue    = "cr"
	ServerSendValue    = "ss"
	ServerRecvValue    = "sr"
	WireSendValue      = "ws"
	WireRecvValue      = "wr"
	MessageSendValue   = "ms"
	MessageRecvValue   = "mr"
	ClientAddrKey      = "ca"
	ServerAddrKey      = "sa"
	MessageAddrKey     = "ma"
	annotationTimeForm = "2006-01-02T15:04:05.000000Z07:00"
)

// Annotation is a timestamped event attached to a span.
type Annotation struct {
	Value     string
	Timestamp time.Time
	// Endpoint is where the event was observed. A nil endpoint is replaced
	// by the span's endpoint when the annotation is recorded.
	Endpoint *Endpoint
}

// NewAnnotation returns an annotation without an endpoint.
func NewAnnotation(value string, timestamp time.Time) Annotation {
	return Annotation{Value: value, Timestamp: timestamp}
}

// ClientSend marks the moment a client sent its request.
func ClientSend(t time.Time) Annotation { return NewAnnotation(ClientSendValue, t) }

// ClientRecv marks the moment a client received the response.
func ClientRecv(t time.Time) Annotation { return NewAnnotation(ClientRecvValue, t) }

// ServerRecv marks the moment a server received the request.
func ServerRecv(t time.Time) Annotation { return NewAnnotation(ServerRecvValue, t) }

// ServerSend marks the moment a server sent the response.
func ServerSend(t time.Time) Annotation { return NewAnnotation(ServerSendValue, t) }

// WithEndpoint returns a copy of a bound to e.
func (a Annotation) WithEndpoint(e *Endpoint) Annotation {
	a.Endpoint = e
	return a
}

func (a Annotation) String() string {
	return fmt.Sprintf("Annotation(value:%s, timestamp:%s, endpoint:%s)",
		a.Value, a.Timestamp.UTC().Format(annotationTimeForm), a.Endpoint)
}

// AnnotationType is the wire type tag of a binary annotation value.
type AnnotationType int32

// Annotation types as numbered by zipkinCore.thrift.
const (
	AnnotationTypeBool AnnotationType = iota
	AnnotationTypeBytes
	AnnotationTypeI16
	AnnotationTypeI32
	AnnotationTypeI64
	AnnotationTypeDouble
	AnnotationTypeString
)

func (t AnnotationType) String() string {
	switch t {
	case AnnotationTypeBool:
		return "BOOL"
	case AnnotationTypeBytes:
		return "BYTES"
	case AnnotationTypeI16:
		return "I16"
	case AnnotationTypeI32:
		return "I32"
	case AnnotationTypeI64:
		return "I64"
	case AnnotationTypeDouble:
		return "DOUBLE"
	case AnnotationTypeString:
		return "STRING"
	}
	return fmt.Sprintf("AnnotationType(%d)", int32(t))
}

// BinaryAnnotation is a typed key/value fact attached to a span. Value must be
// one of bool, []byte, int16, int32, int64, int, float64 or string; other
// types are rejected when the span is encoded.
type BinaryAnnotation struct {
	Key      string
	Value    interface{}
	Endpoint *Endpoint
}

// NewBinaryAnnotation returns a binary annotation without an endpoint.
func NewBinaryAnnotation(key string, value interface{}) BinaryAnnotation {
	return BinaryAnnotation{Key: key, Value: value}
}

// WithEndpoint returns a copy of b bound to e.
func (b BinaryAnnotation) WithEndpoint(e *Endpoint) BinaryAnnotation {
	b.Endpoint = e
	return b
}

// Type reports the wire type of the value, false for unsupported values.
func (b BinaryAnnotation) Type() (AnnotationType, bool) {
	switch b.Value.(type) {
	case bool:
		return AnnotationTypeBool, true
	case []byte:
		return AnnotationTypeBytes, true
	case int16:
		return AnnotationTypeI16, true
	case int32:
		return AnnotationTypeI32, true
	case int64, int:
		return AnnotationTypeI64, true
	case float64:
		return AnnotationTypeDouble, true
	case string:
		return AnnotationTypeString, true
	}
	return 0, false
}

func (b BinaryAnnotation) String() string {
	t, ok := b.Type()
	typ := "UNSUPPORTED"
	if ok {
		typ = t.String()
	}
	return fmt.Sprintf("BinaryAnnotation(key:%s, value:%v, type:%s, endpoint:%s)",
		b.Key, b.Value, typ, b.Endpoint)
}
