package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// publishTimeout bounds a single asynchronous publish.
const publishTimeout = 5 * time.Second

// Event is the message published for each account event.
type Event struct {
	AcademiaID string            `json:"academiaId"`
	UserID     string            `json:"userId"`
	Action     string            `json:"action"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// MessageWriter is the part of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher streams account events to a Kafka topic. LogEvent does not block; Close waits for
// in-flight messages. Events logged after Close are dropped.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewKafkaPublisher returns a Publisher writing to topic, or nil when brokers or topic are empty.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, logger)
}

// NewPublisher returns a Publisher over w.
func NewPublisher(w MessageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

// LogEvent publishes the event keyed by user id so a user's events stay ordered.
// Request cancellation does not abort the write.
func (p *Publisher) LogEvent(_ context.Context, academiaID, userID, action string, metadata map[string]string) {
	if p == nil || p.writer == nil {
		return
	}
	if academiaID == "" {
		academiaID = SentinelAcademiaID
	}
	payload, err := json.Marshal(Event{
		AcademiaID: academiaID,
		UserID:     userID,
		Action:     action,
		Metadata:   metadata,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		p.logger.Warn("audit: encode event", zap.String("action", action), zap.Error(err))
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug("audit: publisher closed, event dropped", zap.String("action", action))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(userID), Value: payload}); err != nil {
			p.logger.Warn("audit: publish failed", zap.String("action", action), zap.Error(err))
		}
	}()
}

// Close waits for pending publishes and closes the writer. Safe on a nil Publisher and safe to
// call more than once.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return p.writer.Close()
}

// Multi fans an event out to every logger.
type Multi []AuditLogger

func (m Multi) LogEvent(ctx context.Context, academiaID, userID, action string, metadata map[string]string) {
	for _, l := range m {
		l.LogEvent(ctx, academiaID, userID, action, metadata)
	}
}
