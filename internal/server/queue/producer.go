// Package queue publishes verification image events to Kafka.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/imagestore"
	"github.com/segmentio/kafka-go"
)

// timestamp layout for stored image names
const imageTimeLayout = "2006-01-02T15:04:05.000000"

const checkTimeout = 3 * time.Second

// Producer stores an image and announces it on the topic.
type Producer interface {
	UploadImage(ctx context.Context, username string, image []byte) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Check(ctx context.Context) bool
}

// ImageMessage is the JSON payload published for each uploaded image.
type ImageMessage struct {
	UserName string `json:"username"`
	FilePath string `json:"file_path"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type brokerConn interface {
	Brokers() ([]kafka.Broker, error)
	Close() error
}

// dialBroker is a seam for testing kafka.DialContext.
var dialBroker = func(ctx context.Context, address string) (brokerConn, error) {
	return kafka.DialContext(ctx, "tcp", address)
}

type Config struct {
	Brokers       []string
	Topic         string
	RetryInterval time.Duration
}

type KafkaProducer struct {
	writer        messageWriter
	store         imagestore.Store
	brokers       []string
	topic         string
	retryInterval time.Duration
	logger        logging.Logger
	now           func() time.Time
}

func NewKafkaProducer(cfg Config, store imagestore.Store, logger logging.Logger) *KafkaProducer {
	l := logger.With("module", "kafka_producer")

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			l.Error(context.Background(), "writer: "+fmt.Sprintf(msg, args...))
		}),
	}

	return newKafkaProducer(w, cfg, store, l)
}

func newKafkaProducer(w messageWriter, cfg Config, store imagestore.Store, logger logging.Logger) *KafkaProducer {
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 10 * time.Second
	}
	return &KafkaProducer{
		writer:        w,
		store:         store,
		brokers:       cfg.Brokers,
		topic:         cfg.Topic,
		retryInterval: retry,
		logger:        logger,
		now:           time.Now,
	}
}

// UploadImage saves image as "<username>-<timestamp>" and publishes its
// location keyed by username.
func (p *KafkaProducer) UploadImage(ctx context.Context, username string, image []byte) error {
	name := fmt.Sprintf("%s-%s", username, p.now().UTC().Format(imageTimeLayout))

	location, err := p.store.Save(ctx, name, image)
	if err != nil {
		return fmt.Errorf("store image: %w", err)
	}

	payload, err := json.Marshal(ImageMessage{UserName: username, FilePath: location})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(username),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.logger.Info(ctx, "image published", "username", username, "file_path", location)
	return nil
}

// Start blocks until a broker answers or ctx ends.
func (p *KafkaProducer) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.retryInterval)
	defer ticker.Stop()

	for {
		if p.Check(ctx) {
			p.logger.Info(ctx, "kafka is available", "brokers", p.brokers)
			return nil
		}
		p.logger.Warn(ctx, "kafka is unavailable, retrying", "interval", p.retryInterval.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *KafkaProducer) Stop(ctx context.Context) error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Check reports whether any broker returns cluster metadata.
func (p *KafkaProducer) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	for _, addr := range p.brokers {
		conn, err := dialBroker(ctx, addr)
		if err != nil {
			p.logger.Debug(ctx, "kafka dial failed", "broker", addr, "error", err)
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return true
		}
		p.logger.Debug(ctx, "kafka metadata failed", "broker", addr, "error", err)
	}
	return false
}
