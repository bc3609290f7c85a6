// Package busclient bridges the in-process command/response channels to the
// durable message bus (C9, spec §4.9). The bus is Kafka-shaped: see
// DESIGN.md's Open Question OQ-1 for why franz-go's kgo.Client was chosen
// over a Solace SMF client despite the site's own WebSocket traffic (C5)
// being SMF-framed.
package busclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/wonderooo/cars/internal/domain"
)

// Config carries the consumer/producer tuning spec §4.9 specifies exactly.
type Config struct {
	Brokers []string
	GroupID string

	// ConsumerSessionTimeout is the 6s session timeout spec §4.9 requires.
	ConsumerSessionTimeout time.Duration

	// ProducerMessageTimeout is the 5s producer delivery timeout.
	ProducerMessageTimeout time.Duration

	// ProducerMaxMessageBytes is 100MB, sized for image payloads passing
	// through the legacy synced-images topic.
	ProducerMaxMessageBytes int32
}

// DefaultConfig returns the tuning knobs spec §4.9 specifies when the caller
// only needs to supply brokers and a group id.
func DefaultConfig(brokers []string, groupID string) Config {
	return Config{
		Brokers:                 brokers,
		GroupID:                 groupID,
		ConsumerSessionTimeout:  6 * time.Second,
		ProducerMessageTimeout:  5 * time.Second,
		ProducerMaxMessageBytes: 100 * 1024 * 1024,
	}
}

// InboundAdapter subscribes to the command topics and forwards decoded
// Commands to a channel.
type InboundAdapter struct {
	client *kgo.Client
	log    zerolog.Logger
}

// NewInboundAdapter constructs a consumer client reading domain.CommandTopics
// from the earliest offset, with async auto-commit enabled, per spec §4.9.
func NewInboundAdapter(cfg Config, log zerolog.Logger) (*InboundAdapter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(domain.CommandTopics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitMarks(),
		kgo.SessionTimeout(cfg.ConsumerSessionTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("busclient: new consumer client: %w", err)
	}
	return &InboundAdapter{client: client, log: log.With().Str("component", "busclient_inbound").Logger()}, nil
}

// Run polls the bus until ctx is cancelled, decoding each record as a
// domain.Command and forwarding it to out. Deserialization failures are
// logged and the record is still committed (at-most-once for malformed
// payloads), per spec §4.9.
func (a *InboundAdapter) Run(ctx context.Context, out chan<- domain.Command) {
	for {
		fetches := a.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			a.log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("fetch error")
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			var cmd domain.Command
			if err := json.Unmarshal(rec.Value, &cmd); err != nil {
				a.log.Error().Err(err).Str("topic", rec.Topic).Msg("malformed command payload, dropping")
				return
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
			}
		})
	}
}

// Close releases the underlying client.
func (a *InboundAdapter) Close() { a.client.Close() }

// OutboundAdapter dequeues Responses and publishes them to the bus.
type OutboundAdapter struct {
	client *kgo.Client
	log    zerolog.Logger
}

// NewOutboundAdapter constructs a producer client tuned per spec §4.9:
// message timeout 5s, max message bytes 100MB.
func NewOutboundAdapter(cfg Config, log zerolog.Logger) (*OutboundAdapter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchMaxBytes(cfg.ProducerMaxMessageBytes),
		kgo.RecordDeliveryTimeout(cfg.ProducerMessageTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("busclient: new producer client: %w", err)
	}
	return &OutboundAdapter{client: client, log: log.With().Str("component", "busclient_outbound").Logger()}, nil
}

// Run dequeues from in until it is closed or ctx is cancelled, publishing
// each Response synchronously (awaiting delivery to surface errors) to the
// topic its Kind selects, keyed by correlation id when available, else a
// random UUID.
func (a *OutboundAdapter) Run(ctx context.Context, in <-chan domain.Response) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-in:
			if !ok {
				return
			}
			a.publish(ctx, resp)
		}
	}
}

func (a *OutboundAdapter) publish(ctx context.Context, resp domain.Response) {
	topic := resp.Topic()
	if topic == "" {
		a.log.Warn().Str("kind", string(resp.Kind)).Msg("response has no topic, dropping")
		return
	}

	key := resp.CorrelationID
	if key == "" {
		key = uuid.NewString()
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		a.log.Error().Err(err).Msg("marshal response failed, dropping")
		return
	}

	rec := &kgo.Record{Topic: topic, Key: []byte(key), Value: raw}

	result := a.client.ProduceSync(ctx, rec)
	if err := result.FirstErr(); err != nil {
		a.log.Error().Err(err).Str("topic", topic).Msg("produce failed")
	}
}

// Close releases the underlying client.
func (a *OutboundAdapter) Close() { a.client.Close() }

// CommandProducer publishes domain.Command values to their topic. Used by
// the scheduler (C10) and the persister (C12, LotImages follow-ups) rather
// than feeding a browser pool's inbound channel directly, since both run in
// a different process than cmd/browser.
type CommandProducer struct {
	client *kgo.Client
	log    zerolog.Logger
}

// NewCommandProducer constructs a producer client tuned identically to
// NewOutboundAdapter.
func NewCommandProducer(cfg Config, log zerolog.Logger) (*CommandProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchMaxBytes(cfg.ProducerMaxMessageBytes),
		kgo.RecordDeliveryTimeout(cfg.ProducerMessageTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("busclient: new command producer client: %w", err)
	}
	return &CommandProducer{client: client, log: log.With().Str("component", "busclient_command_producer").Logger()}, nil
}

// Run dequeues from in until it is closed or ctx is cancelled, publishing
// each Command synchronously to the topic its Kind selects.
func (p *CommandProducer) Run(ctx context.Context, in <-chan domain.Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-in:
			if !ok {
				return
			}
			p.publish(ctx, cmd)
		}
	}
}

func (p *CommandProducer) publish(ctx context.Context, cmd domain.Command) {
	topic := cmd.Topic()
	if topic == "" {
		p.log.Warn().Str("kind", string(cmd.Kind)).Msg("command has no topic, dropping")
		return
	}

	raw, err := json.Marshal(cmd)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal command failed, dropping")
		return
	}

	rec := &kgo.Record{Topic: topic, Key: []byte(uuid.NewString()), Value: raw}
	result := p.client.ProduceSync(ctx, rec)
	if err := result.FirstErr(); err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("produce failed")
	}
}

// Close releases the underlying client.
func (p *CommandProducer) Close() { p.client.Close() }

// ResponseConsumer subscribes to a fixed set of response topics and forwards
// decoded domain.Response values to a channel. Used by the image sync and
// persister sinks (C11, C12), which consume Responses rather than Commands.
type ResponseConsumer struct {
	client *kgo.Client
	log    zerolog.Logger
}

// NewResponseConsumer constructs a consumer client reading topics from the
// earliest offset, with async auto-commit enabled, mirroring
// NewInboundAdapter's tuning.
func NewResponseConsumer(cfg Config, topics []string, log zerolog.Logger) (*ResponseConsumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitMarks(),
		kgo.SessionTimeout(cfg.ConsumerSessionTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("busclient: new response consumer client: %w", err)
	}
	return &ResponseConsumer{client: client, log: log.With().Str("component", "busclient_response_consumer").Logger()}, nil
}

// Run polls the bus until ctx is cancelled, decoding each record as a
// domain.Response and forwarding it to out. Malformed payloads are logged
// and dropped (spec §7's malformed-payload policy).
func (c *ResponseConsumer) Run(ctx context.Context, out chan<- domain.Response) {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("fetch error")
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			var resp domain.Response
			if err := json.Unmarshal(rec.Value, &resp); err != nil {
				c.log.Error().Err(err).Str("topic", rec.Topic).Msg("malformed response payload, dropping")
				return
			}
			select {
			case out <- resp:
			case <-ctx.Done():
			}
		})
	}
}

// Close releases the underlying client.
func (c *ResponseConsumer) Close() { c.client.Close() }
