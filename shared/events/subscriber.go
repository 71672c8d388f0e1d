package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

var errMalformedMessage = errors.New("malformed stream message")

type Subscriber struct {
	client        redis.Cmdable
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	reclaimIdle   time.Duration
	maxDeliveries int64
	deadLetter    string
	logger        *slog.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ReclaimIdle re-delivers messages left pending (un-ACKed) for longer than
	// this duration. Zero disables reclaiming.
	ReclaimIdle time.Duration
	// MaxDeliveries caps how often one message is handed to Handler. A message
	// that still fails is ACKed and copied to DeadLetterStream. Zero retries
	// forever.
	MaxDeliveries    int64
	DeadLetterStream string
	Logger           *slog.Logger
}

func NewSubscriber(client redis.Cmdable, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		reclaimIdle:   config.ReclaimIdle,
		maxDeliveries: config.MaxDeliveries,
		deadLetter:    config.DeadLetterStream,
		logger:        config.Logger.With("stream", config.Stream, "group", config.Group),
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	// Create consumer group if it doesn't exist
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.Info("subscriber started", "consumer", s.consumer)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopping")
			return ctx.Err()
		default:
			if s.reclaimIdle > 0 {
				if err := s.reclaimPending(ctx); err != nil {
					s.logger.Warn("reclaiming pending messages failed", "error", err)
				}
			}
			if err := s.readMessages(ctx); err != nil {
				s.logger.Error("error reading messages", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if err == redis.Nil {
		return nil // No messages
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleBatch(ctx, stream.Messages, false)
	}

	return nil
}

// reclaimPending takes over messages another delivery attempt left un-ACKed.
func (s *Subscriber) reclaimPending(ctx context.Context) error {
	messages, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.reclaimIdle,
		Start:    "0-0",
		Count:    s.batchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pending messages: %w", err)
	}
	s.handleBatch(ctx, messages, true)
	return nil
}

func (s *Subscriber) handleBatch(ctx context.Context, messages []redis.XMessage, reclaimed bool) {
	for _, message := range messages {
		err := s.processMessage(ctx, message)
		if err != nil {
			if !s.exhausted(ctx, message.ID, reclaimed, err) {
				s.logger.Error("failed to process message", "id", message.ID, "error", err)
				// Don't ACK failed messages - they'll be retried
				continue
			}
			if dlErr := s.moveToDeadLetter(ctx, message, err); dlErr != nil {
				s.logger.Error("failed to dead-letter message", "id", message.ID, "error", dlErr)
				continue
			}
		}

		if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
			s.logger.Error("failed to ACK message", "id", message.ID, "error", err)
		}
	}
}

// exhausted reports whether a failed message should stop being retried.
// A fresh read is the first delivery; a reclaimed message carries its count
// in the pending entries list.
func (s *Subscriber) exhausted(ctx context.Context, id string, reclaimed bool, err error) bool {
	if errors.Is(err, errMalformedMessage) {
		return true
	}
	if s.maxDeliveries <= 0 {
		return false
	}
	deliveries := int64(1)
	if reclaimed {
		deliveries = s.deliveryCount(ctx, id)
	}
	return deliveries >= s.maxDeliveries
}

func (s *Subscriber) deliveryCount(ctx context.Context, id string) int64 {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.stream,
		Group:  s.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		s.logger.Warn("cannot read delivery count", "id", id, "error", err)
		return 0
	}
	return pending[0].RetryCount
}

// moveToDeadLetter copies the message with its failure to the dead-letter
// stream. Without a dead-letter stream the message is only logged.
func (s *Subscriber) moveToDeadLetter(ctx context.Context, message redis.XMessage, cause error) error {
	s.logger.Error("giving up on message", "id", message.ID, "error", cause)
	if s.deadLetter == "" {
		return nil
	}
	values := make(map[string]any, len(message.Values)+3)
	for k, v := range message.Values {
		values[k] = v
	}
	values["sourceId"] = message.ID
	values["sourceStream"] = s.stream
	values["error"] = cause.Error()
	return s.client.XAdd(ctx, &redis.XAddArgs{Stream: s.deadLetter, Values: values}).Err()
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: missing event field", errMalformedMessage)
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedMessage, err)
	}

	return s.handler(ctx, event)
}
