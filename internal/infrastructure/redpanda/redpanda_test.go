package redpanda

import (
	"context"
	"testing"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	record := &kgo.Record{Topic: TopicEvents, Headers: []kgo.RecordHeader{{Key: "source", Value: []byte("api")}}}
	injectTraceHeaders(ctx, record)

	if got := (headerCarrier{record: record}).Get("traceparent"); got != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("traceparent = %q", got)
	}

	extracted := trace.SpanContextFromContext(extractTraceContext(context.Background(), record))
	if extracted.TraceID() != traceID || !extracted.IsRemote() {
		t.Errorf("extracted = %+v", extracted)
	}
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	record := &kgo.Record{}
	c := headerCarrier{record: record}
	c.Set("k", "1")
	c.Set("k", "2")
	if len(record.Headers) != 1 || c.Get("k") != "2" {
		t.Errorf("headers = %+v", record.Headers)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "k" {
		t.Errorf("keys = %v", keys)
	}
}

func TestToMessageCopiesHeaders(t *testing.T) {
	record := &kgo.Record{
		Topic:     TopicEvents,
		Partition: 3,
		Offset:    42,
		Key:       []byte("patient-1"),
		Value:     []byte(`{"id":"e1"}`),
		Headers:   []kgo.RecordHeader{{Key: "traceparent", Value: []byte("00-x")}},
	}
	msg := toMessage(record)
	if msg.Partition != 3 || msg.Offset != 42 || string(msg.Key) != "patient-1" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Headers["traceparent"] != "00-x" {
		t.Errorf("headers = %v", msg.Headers)
	}
}

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopicConfigs()
	if len(topics) != 2 || topics[0].Name != "hospital.events" || topics[1].Name != "hospital.events.dlq" {
		t.Errorf("topics = %+v", topics)
	}
}

func TestProducerConfigValidation(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}, nil); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}}, func(context.Context, *ConsumedMessage) error { return nil }, nil); err == nil {
		t.Error("expected error without group")
	}
}
