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
	"sort"
	"time"

	"github.com/openzipkin/zipkin-go/model"
	"github.com/openzipkin/zipkin-go/reporter"
)

var _ reporter.Reporter = (*Reporter)(nil)

// Reporter lets a zipkin-go Tracer report through a Collector. Every finished
// span is converted with SpanFromModel and collected on its own, so it is
// usually combined with a BatchCollector.
type Reporter struct {
	collector Collector
	endpoint  *Endpoint
	logger    Logger
	timeout   time.Duration
	state     *StateLogger
}

// ReporterOption allows for functional options.
type ReporterOption func(r *Reporter)

// ReporterLogger sets the logger collection failures are reported to.
func ReporterLogger(logger Logger) ReporterOption {
	return func(r *Reporter) { r.logger = logger }
}

// ReporterEndpoint sets the endpoint used for spans that carry no local
// endpoint.
func ReporterEndpoint(e *Endpoint) ReporterOption {
	return func(r *Reporter) { r.endpoint = e }
}

// ReporterTimeout bounds each Collect call. Zero means no bound.
func ReporterTimeout(d time.Duration) ReporterOption {
	return func(r *Reporter) { r.timeout = d }
}

// NewReporter returns a zipkin-go compatible reporter backed by c.
func NewReporter(c Collector, options ...ReporterOption) *Reporter {
	r := &Reporter{
		collector: c,
		logger:    NewNopLogger(),
	}
	for _, option := range options {
		option(r)
	}
	r.state = NewStateLogger(r.logger, defaultErrorLogInterval)
	return r
}

// Send implements reporter.Reporter.
func (r *Reporter) Send(sm model.SpanModel) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.collector.Collect(ctx, SpanFromModel(sm, r.endpoint)); err != nil {
		r.state.LogError(err, "span", sm.ID.String())
		return
	}
	r.state.Fixed("msg", "span reporting recovered")
}

// Close implements reporter.Reporter and closes the collector.
func (r *Reporter) Close() error {
	return r.collector.Close()
}

// SpanFromModel converts a finished zipkin-go span into a Span. The span
// kind becomes the matching pair of core annotations, the remote endpoint an
// address annotation, and tags become string binary annotations ordered by
// key. defaultEndpoint is used when the span has no local endpoint.
func SpanFromModel(sm model.SpanModel, defaultEndpoint *Endpoint) *Span {
	local := EndpointFromModel(sm.LocalEndpoint)
	if local == nil {
		local = defaultEndpoint
	}
	var serviceName string
	if local != nil {
		serviceName = local.ServiceName
	}

	duration := sm.Duration.Microseconds()
	// spans are always timed, so round sub microsecond durations up.
	if duration == 0 && sm.Duration > 0 {
		duration = 1
	}
	start, end := sm.Timestamp, sm.Timestamp.Add(sm.Duration)

	span := NewSpan(HeaderFromContext(sm.SpanContext), local, duration, serviceName, sm.Name)
	// only the process owning the span reports its timestamp and duration.
	if sm.Shared {
		span.Duration = 0
	} else {
		span.Timestamp = start
	}

	var addrKey string
	switch sm.Kind {
	case model.Client:
		span.Record(ClientSend(start))
		span.Record(ClientRecv(end))
		addrKey = ServerAddrKey
	case model.Server:
		span.Record(ServerRecv(start))
		span.Record(ServerSend(end))
		addrKey = ClientAddrKey
	case model.Producer:
		span.Record(NewAnnotation(MessageSendValue, start))
		addrKey = MessageAddrKey
	case model.Consumer:
		span.Record(NewAnnotation(MessageRecvValue, start))
		addrKey = MessageAddrKey
	}

	for _, a := range sm.Annotations {
		span.Record(NewAnnotation(a.Value, a.Timestamp))
	}

	if remote := EndpointFromModel(sm.RemoteEndpoint); remote != nil && addrKey != "" {
		span.RecordBinary(NewBinaryAnnotation(addrKey, true).WithEndpoint(remote))
	}

	keys := make([]string, 0, len(sm.Tags))
	for k := range sm.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		span.RecordBinary(NewBinaryAnnotation(k, sm.Tags[k]))
	}
	return span
}
