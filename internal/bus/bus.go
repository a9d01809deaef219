// Package bus wraps kafka-go construction for contentcore's consumers and
// producers: manual commit, earliest offset reset, optional SASL PLAIN.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"contentcore/internal/config"
)

// Producer is the narrow produce surface the services depend on.
type Producer interface {
	PublishJSON(ctx context.Context, topic string, key string, v any) error
	Close() error
}

// Brokers splits the comma-separated broker list from config.
func Brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func transport(cfg config.KafkaConfig) *kafka.Transport {
	tr := &kafka.Transport{DialTimeout: 10 * time.Second}
	if cfg.SASLUser != "" {
		tr.SASL = plain.Mechanism{Username: cfg.SASLUser, Password: cfg.SASLPass}
	}
	return tr
}

func dialer(cfg config.KafkaConfig) *kafka.Dialer {
	d := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.SASLUser != "" {
		d.SASLMechanism = plain.Mechanism{Username: cfg.SASLUser, Password: cfg.SASLPass}
	}
	return d
}

// NewReader builds a manual-commit reader over the given topics. Offsets
// reset to earliest for new groups; commits happen only via CommitMessages
// after the handler succeeds.
func NewReader(cfg config.KafkaConfig, topics ...string) *kafka.Reader {
	rc := kafka.ReaderConfig{
		Brokers:     Brokers(cfg),
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
		Dialer:      dialer(cfg),
	}
	if len(topics) == 1 {
		rc.Topic = topics[0]
	} else {
		rc.GroupTopics = topics
	}
	return kafka.NewReader(rc)
}

// Writer is a JSON-producing kafka writer. Topic is set per message so one
// writer serves every outcome topic.
type Writer struct {
	w *kafka.Writer
}

// NewWriter builds the shared producer.
func NewWriter(cfg config.KafkaConfig) *Writer {
	return &Writer{w: &kafka.Writer{
		Addr:      kafka.TCP(Brokers(cfg)...),
		Balancer:  &kafka.LeastBytes{},
		Transport: transport(cfg),
	}}
}

// PublishJSON marshals v as UTF-8 JSON and produces it to topic.
func (p *Writer) PublishJSON(ctx context.Context, topic string, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", topic, err)
	}
	msg := kafka.Message{Topic: topic, Value: payload}
	if key != "" {
		msg.Key = []byte(key)
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Writer) Close() error {
	return p.w.Close()
}

// EnsureTopics creates the given topics when missing so first boot does not
// depend on broker auto-creation.
func EnsureTopics(ctx context.Context, cfg config.KafkaConfig, topics ...string) error {
	brokers := Brokers(cfg)
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := dialer(cfg).DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}
	ctrlConn, err := dialer(cfg).DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrlConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
	}
	if err := ctrlConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	return nil
}
