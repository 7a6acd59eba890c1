package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is called for each message received from Kafka. Handler
// errors are logged and the message committed; a reading that cannot be
// processed is dropped, never redelivered.
type MessageHandler func(ctx context.Context, msg *ScaleMessage) error

// Consumer consumes scale readings from Kafka. Unlike handler errors, a
// transport failure is fatal: the consume loop exits and Err reports the
// cause, so the process supervisor can restart with a clean connection.
type Consumer struct {
	reader  *kafka.Reader
	logger  ectologger.Logger
	config  ConsumerConfig
	handler MessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	running bool
	mu      sync.Mutex
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig, logger ectologger.Logger) (*Consumer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if config.GroupID == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           config.Brokers,
		Topic:             config.Topic,
		GroupID:           config.GroupID,
		MinBytes:          config.MinBytes,
		MaxBytes:          config.MaxBytes,
		MaxWait:           config.MaxWait,
		CommitInterval:    config.CommitInterval,
		StartOffset:       config.StartOffset,
		SessionTimeout:    config.SessionTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
		RebalanceTimeout:  config.RebalanceTimeout,
	})

	return &Consumer{
		reader: reader,
		logger: logger,
		config: config,
		done:   make(chan struct{}),
	}, nil
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.handler = handler
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Infof("Kafka consumer started for topic %s (group: %s)", c.config.Topic, c.config.GroupID)
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	c.logger.Info("Kafka consumer stopped")
	return nil
}

// Done is closed when the consume loop has exited, whether from Stop or a
// fatal transport failure.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that ended the consume loop, or nil after a
// clean shutdown.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// consumeLoop continuously fetches and processes messages
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // Context cancelled, exit gracefully
			}
			// Broker connection is gone; bail out rather than serve a
			// half-alive pipeline.
			c.mu.Lock()
			c.err = fmt.Errorf("lost connection to broker: %w", err)
			c.mu.Unlock()
			c.logger.WithError(err).Error("Fatal fetch failure, stopping consumer")
			return
		}

		received := &ScaleMessage{
			Topic:      msg.Topic,
			Partition:  msg.Partition,
			Offset:     msg.Offset,
			Key:        msg.Key,
			Value:      msg.Value,
			Scale:      ResolveScale(msg.Topic, msg.Key, msg.Value),
			ReceivedAt: time.Now().UTC(),
		}

		if err := c.handler(ctx, received); err != nil {
			c.logger.WithError(err).Errorf("Handler failed for message at offset %d", msg.Offset)
			// Bad readings are dropped; commit so the group does not stall.
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.WithError(err).Errorf("Failed to commit message at offset %d", msg.Offset)
		}
	}
}

// Lag returns the current consumer lag
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
