package notify

import (
	"context"
	"encoding/json"
	"time"

	"slotbook/internal/config"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageWriter is the subset of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes the JSON payload keyed by company, so one company's events
// stay ordered on a single partition.
type KafkaNotifier struct {
	writer MessageWriter
	loc    *time.Location
}

// NewKafkaWriter builds a hash-balanced writer for the configured topic.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, loc: time.Local}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Notify(ctx context.Context, n *Notification) error {
	raw, err := json.Marshal(BuildPayload(n, k.loc))
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(n.Reservation.CompanyID),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(n.Reservation.ReservationID + ":" + n.Type)},
			{Key: "event_type", Value: []byte(n.Type)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)

	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// InjectTraceHeaders appends W3C trace context headers to Kafka headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

// HeaderValue returns the first header named key, or "".
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
