package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config holds the Kafka mirror settings.
type Config struct {
	Broker     string
	Topic      string
	BufferSize int
}

// frameWriter is the slice of kafka.Writer the mirror uses.
type frameWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMirror consumes mirrored frames from a buffer and writes them
// to a Kafka topic. It satisfies hub.Mirror.
type KafkaMirror struct {
	cfg    Config
	logger *slog.Logger
	writer frameWriter

	input chan kafka.Message

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	dropped uint64
}

// NewKafkaMirror creates a mirror writing to the configured broker.
func NewKafkaMirror(cfg Config, logger *slog.Logger) *KafkaMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaMirror{
		cfg:    cfg,
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Broker),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		input: make(chan kafka.Message, cfg.BufferSize),
	}
}

// Start begins consuming mirrored frames.
func (m *KafkaMirror) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.consumeLoop()

	m.logger.Info("kafka mirror started",
		"broker", m.cfg.Broker,
		"topic", m.cfg.Topic,
	)
	return nil
}

// Stop drains in-flight frames and closes the writer.
func (m *KafkaMirror) Stop(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("kafka mirror stop timed out")
	}

	err := m.writer.Close()
	m.logger.Info("kafka mirror stopped", "dropped_total", m.droppedTotal())
	return err
}

// Mirror enqueues one frame for delivery. It never blocks: when the
// buffer is full the frame is dropped and counted.
func (m *KafkaMirror) Mirror(account string, frame []byte) {
	msg := kafka.Message{
		Key:   []byte(account),
		Value: frame,
		Time:  time.Now(),
	}
	select {
	case m.input <- msg:
	default:
		m.mu.Lock()
		m.dropped++
		n := m.dropped
		m.mu.Unlock()
		if n%1000 == 1 {
			m.logger.Warn("kafka mirror buffer full, dropping frames",
				"account", account,
				"dropped_total", n,
			)
		}
	}
}

func (m *KafkaMirror) consumeLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case msg := <-m.input:
					m.write(msg)
				default:
					return
				}
			}
		case msg := <-m.input:
			m.write(msg)
		}
	}
}

func (m *KafkaMirror) write(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		m.logger.Error("kafka write failed",
			"account", string(msg.Key),
			"error", err,
		)
	}
}

func (m *KafkaMirror) droppedTotal() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
