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
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultHTTPURL is the Zipkin v1 thrift span endpoint of a local server.
	DefaultHTTPURL = "http://localhost:9411/api/v1/spans"

	defaultHTTPTimeout = time.Second * 5
)

// HTTPCollector implements Collector by posting each batch of spans, thrift
// encoded, in a single request. It does not retry.
type HTTPCollector struct {
	logger      Logger
	url         string
	client      *http.Client
	reqCallback RequestCallback
}

// RequestCallback receives the initialized request from the Collector before
// sending it over the wire. This allows one to plug in additional headers or
// do other customization.
type RequestCallback func(*http.Request)

// HTTPOption sets a parameter for the HTTPCollector
type HTTPOption func(c *HTTPCollector)

// HTTPLogger sets the logger used to report errors in the collection
// process. By default, a no-op logger is used, i.e. no errors are logged
// anywhere. Errors are returned to the caller either way.
func HTTPLogger(logger Logger) HTTPOption {
	return func(c *HTTPCollector) { c.logger = logger }
}

// HTTPTimeout sets maximum timeout for http request.
func HTTPTimeout(duration time.Duration) HTTPOption {
	return func(c *HTTPCollector) { c.client.Timeout = duration }
}

// HTTPClient sets a custom http client to use.
func HTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPCollector) { c.client = client }
}

// HTTPRequestCallback registers a callback function to adjust the collector
// *http.Request before it sends the request to Zipkin.
func HTTPRequestCallback(rc RequestCallback) HTTPOption {
	return func(c *HTTPCollector) { c.reqCallback = rc }
}

// NewHTTPCollector returns a new HTTP-backend Collector. url should be a http
// url that accepts thrift encoded span lists; an empty url means
// DefaultHTTPURL.
func NewHTTPCollector(url string, options ...HTTPOption) *HTTPCollector {
	if url == "" {
		url = DefaultHTTPURL
	}
	c := &HTTPCollector{
		logger: NewNopLogger(),
		url:    url,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Collect implements Collector. It succeeds only when the server answers
// 202 Accepted.
func (c *HTTPCollector) Collect(ctx context.Context, spans ...*Span) error {
	payload, err := EncodeSpans(snapshotAll(spans))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		_ = c.logger.Log("err", err.Error())
		return &TransportError{Backend: c.url, Err: err}
	}
	req.Header.Set("Content-Type", ThriftContentType)
	if c.reqCallback != nil {
		c.reqCallback(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		_ = c.logger.Log("err", err.Error())
		return &TransportError{Backend: c.url, Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		_ = c.logger.Log("err", "HTTP POST span failed", "code", resp.Status)
		return &CollectionError{Backend: c.url, Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// Close implements Collector.
func (c *HTTPCollector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
