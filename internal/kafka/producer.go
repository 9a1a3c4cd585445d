package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrBufferFull     = errors.New("producer buffer full")
	ErrProducerClosed = errors.New("producer closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages and writes them from one goroutine. Writes go
// through a circuit breaker so a dead broker costs one failed write per
// cool-down instead of one per message.
type Producer struct {
	w       messageWriter
	cb      *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, logger *slog.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, topic, buf, logger)
}

func newProducer(w messageWriter, name string, buf int, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("topic", name))
	return &Producer{
		w: w,
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "kafka-producer:" + name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
		logger:  logger,
		timeout: 10 * time.Second,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until Close is called or ctx is done; either
// way the buffered messages are flushed first.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					p.write(m)
				}
				p.closeWriter()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.w.WriteMessages(ctx, m)
	})
	if err != nil {
		p.logger.Error("kafka write failed, message dropped",
			slog.String("key", string(m.Key)),
			slog.String("error", err.Error()))
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.logger.Warn("kafka writer close", slog.String("error", err.Error()))
	}
}

// Publish enqueues a message without blocking the caller.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting messages; the loop flushes what is buffered.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the write loop has exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
