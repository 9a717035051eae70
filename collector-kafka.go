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
	"errors"
	"sync"

	"github.com/Shopify/sarama"
)

// Kafka collector defaults.
const (
	DefaultKafkaTopic            = "zipkin"
	DefaultKafkaMaxAsyncRequests = 20
	DefaultKafkaMaxMessageBuffer = 1000
)

// ErrKafkaProducerConfig is returned by NewKafkaCollector when an injected
// producer is combined with options that configure the producer it would
// otherwise build.
var ErrKafkaProducerConfig = errors.New("kafka producer options cannot be applied to an injected producer")

// DefaultKafkaBrokers is used when NewKafkaCollector receives no addresses.
var DefaultKafkaBrokers = []string{"localhost:9092"}

// KafkaCollector implements Collector by publishing each batch of spans as a
// single thrift encoded message through a Sarama AsyncProducer. Collect waits
// for the broker acknowledgement of its own message.
type KafkaCollector struct {
	producer         sarama.AsyncProducer
	logger           Logger
	topic            string
	partition        *int32
	maxAsyncRequests int
	maxMessageBuffer int
	config           *sarama.Config
	// producerTuned is set by the options that only shape a producer built
	// by NewKafkaCollector.
	producerTuned bool

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// KafkaOption sets a parameter for the KafkaCollector
type KafkaOption func(c *KafkaCollector)

// KafkaLogger sets the logger used to report acknowledgements that cannot be
// matched to a caller.
func KafkaLogger(logger Logger) KafkaOption {
	return func(c *KafkaCollector) { c.logger = logger }
}

// KafkaTopic sets the topic spans are published to. Defaults to "zipkin".
func KafkaTopic(t string) KafkaOption {
	return func(c *KafkaCollector) { c.topic = t }
}

// KafkaPartition pins every message to partition p instead of letting the
// partitioner choose. With KafkaProducer the injected producer must be
// configured with sarama.NewManualPartitioner for p to take effect.
func KafkaPartition(p int32) KafkaOption {
	return func(c *KafkaCollector) { c.partition = &p }
}

// KafkaMaxAsyncRequests bounds the number of in-flight produce requests per
// broker connection.
func KafkaMaxAsyncRequests(n int) KafkaOption {
	return func(c *KafkaCollector) {
		c.maxAsyncRequests = n
		c.producerTuned = true
	}
}

// KafkaMaxMessageBuffer bounds the number of messages the producer buffers
// before Collect blocks.
func KafkaMaxMessageBuffer(n int) KafkaOption {
	return func(c *KafkaCollector) {
		c.maxMessageBuffer = n
		c.producerTuned = true
	}
}

// KafkaConfig sets the base Sarama configuration. Successes and errors are
// always returned, and the two bounds above are applied on top of it.
func KafkaConfig(cfg *sarama.Config) KafkaOption {
	return func(c *KafkaCollector) {
		c.config = cfg
		c.producerTuned = true
	}
}

// KafkaProducer sets the producer to use instead of dialing addrs. It must be
// configured with Producer.Return.Successes and Producer.Return.Errors set.
// It cannot be combined with KafkaConfig, KafkaMaxAsyncRequests or
// KafkaMaxMessageBuffer, which NewKafkaCollector rejects with
// ErrKafkaProducerConfig.
func KafkaProducer(p sarama.AsyncProducer) KafkaOption {
	return func(c *KafkaCollector) { c.producer = p }
}

// NewKafkaCollector returns a new Kafka-backed Collector. addrs should be a
// slice of TCP host:port pairs for the Kafka brokers; none means
// DefaultKafkaBrokers.
func NewKafkaCollector(addrs []string, options ...KafkaOption) (*KafkaCollector, error) {
	c := &KafkaCollector{
		logger:           NewNopLogger(),
		topic:            DefaultKafkaTopic,
		maxAsyncRequests: DefaultKafkaMaxAsyncRequests,
		maxMessageBuffer: DefaultKafkaMaxMessageBuffer,
		done:             make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}

	if c.producer != nil && c.producerTuned {
		return nil, ErrKafkaProducerConfig
	}
	if c.producer == nil {
		if len(addrs) == 0 {
			addrs = DefaultKafkaBrokers
		}
		p, err := sarama.NewAsyncProducer(addrs, c.saramaConfig())
		if err != nil {
			return nil, err
		}
		c.producer = p
	}

	go c.dispatch()
	return c, nil
}

func (c *KafkaCollector) saramaConfig() *sarama.Config {
	cfg := c.config
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	if c.maxAsyncRequests > 0 {
		cfg.Net.MaxOpenRequests = c.maxAsyncRequests
	}
	if c.maxMessageBuffer > 0 {
		cfg.ChannelBufferSize = c.maxMessageBuffer
	}
	if c.partition != nil {
		cfg.Producer.Partitioner = sarama.NewManualPartitioner
	}
	return cfg
}

// Collect implements Collector.
func (c *KafkaCollector) Collect(ctx context.Context, spans ...*Span) error {
	payload, err := EncodeSpans(snapshotAll(spans))
	if err != nil {
		return err
	}

	result := make(chan error, 1)
	msg := &sarama.ProducerMessage{
		Topic:    c.topic,
		Value:    sarama.ByteEncoder(payload),
		Metadata: result,
	}
	if c.partition != nil {
		msg.Partition = *c.partition
	}

	// The read lock keeps Close from shutting the input down mid send.
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrCollectorClosed
	}
	select {
	case c.producer.Input() <- msg:
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	}
	c.mu.RUnlock()

	select {
	case err := <-result:
		return c.translate(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *KafkaCollector) translate(err error) error {
	if err == nil {
		return nil
	}
	var kerr sarama.KError
	if errors.As(err, &kerr) {
		if kerr == sarama.ErrNoError {
			return nil
		}
		return &CollectionError{Backend: "kafka topic " + c.topic, Code: int(kerr), Status: kerr.Error()}
	}
	return &TransportError{Backend: "kafka topic " + c.topic, Err: err}
}

// dispatch routes every acknowledgement to the Collect call that produced
// the message until the producer has shut down.
func (c *KafkaCollector) dispatch() {
	defer close(c.done)
	successes, failures := c.producer.Successes(), c.producer.Errors()
	for successes != nil || failures != nil {
		select {
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			c.ack(msg, nil)
		case perr, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			c.ack(perr.Msg, perr.Err)
		}
	}
}

func (c *KafkaCollector) ack(msg *sarama.ProducerMessage, err error) {
	if msg != nil {
		if result, ok := msg.Metadata.(chan error); ok {
			result <- err
			return
		}
	}
	if err != nil {
		_ = c.logger.Log("msg", "unmatched kafka producer error", "err", err.Error())
	}
}

// Close implements Collector. Buffered messages are flushed and their
// callers acknowledged before Close returns.
func (c *KafkaCollector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.producer.AsyncClose()
	<-c.done
	return nil
}
