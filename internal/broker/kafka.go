// Package appkafka carries post-created events from the API node to the
// fan-out worker. The writer publishes one message per created post; the
// reader side consumes them in a group so multiple workers share the topic.
package appkafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Defaults match the config package so a bare KafkaConfig still reaches
// the same topic the server publishes to.
const (
	defaultBroker = "localhost:29092"
	defaultTopic  = "post-events"
	defaultGroup  = "fanout-group"
)

// KafkaWriter publishes post-created events.
type KafkaWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

// KafkaReader consumes post-created events for feed fan-out.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig holds connection parameters for the post-events topic.
type KafkaConfig struct {
	Brokers      []string      // list of Kafka brokers
	Topic        string        // post-events topic name
	Partition    int           // partition number (used for low-level writes)
	WriteTimeout time.Duration // write timeout duration
	ReadTimeout  time.Duration // read timeout duration (used for consumer group)
	GroupID      string        // fan-out consumer group ID
}

func (cfg *KafkaConfig) applyDefaults() {
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{defaultBroker}
	}
	if cfg.Topic == "" {
		cfg.Topic = defaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultGroup
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
}

// RealKafkaWriter implements KafkaWriter using kafka.Conn (low-level writes).
// The server holds one per process; a post-created event is written in the
// request path after the post row is stored.
type RealKafkaWriter struct {
	conn   *kafka.Conn
	config KafkaConfig
}

// NewKafkaWriter connects to the post-events topic leader.
func NewKafkaWriter(cfg KafkaConfig) (*RealKafkaWriter, error) {
	cfg.applyDefaults()

	conn, err := kafka.DialLeader(context.Background(), "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return nil, err
	}

	return &RealKafkaWriter{
		conn:   conn,
		config: cfg,
	}, nil
}

func (w *RealKafkaWriter) WriteMessages(messages ...kafka.Message) error {
	if w.conn == nil {
		return errors.New("kafka connection is nil")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	_, err := w.conn.WriteMessages(messages...)
	return err
}

func (w *RealKafkaWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// RealKafkaReader implements KafkaReader using kafka.Reader (consumer group).
type RealKafkaReader struct {
	reader *kafka.Reader
}

// NewKafkaReader creates a consumer-group reader over the post-events topic.
func NewKafkaReader(cfg KafkaConfig) KafkaReader {
	cfg.applyDefaults()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return &RealKafkaReader{reader: r}
}

func (r *RealKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return r.reader.ReadMessage(ctx)
}

func (r *RealKafkaReader) Close() error {
	return r.reader.Close()
}
