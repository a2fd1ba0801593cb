package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"citeline/internal/platform/redis"
	"citeline/internal/submission/models"
	"citeline/pkg/platform/circuit"
)

// eventChannel is the Redis pub/sub channel shared by all instances.
const eventChannel = "citeline:events"

// envelope wraps an event with the publishing instance's identity so the
// bridge can discard its own messages on the subscribe side.
type envelope struct {
	Origin string       `json:"origin"`
	Event  models.Event `json:"event"`
}

// RedisBridge extends a local Publisher across instances. Every locally
// published event is mirrored to a shared Redis channel, and events published
// by other instances are replayed into the local broadcaster, so a user's
// live connection works no matter which instance committed the mutation.
type RedisBridge struct {
	origin  string
	client  *redis.Client
	local   Publisher
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type BridgeOption func(*RedisBridge)

func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *RedisBridge) { b.logger = logger }
}

// NewRedisBridge wraps local so that Publish reaches every instance.
func NewRedisBridge(client *redis.Client, local Publisher, opts ...BridgeOption) *RedisBridge {
	b := &RedisBridge{
		origin:  uuid.NewString(),
		client:  client,
		local:   local,
		breaker: circuit.New("redis-mirror"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers locally first, then mirrors to the shared channel.
// A Redis failure degrades to local-only delivery rather than failing the
// mutation that produced the event; a persistent failure opens the breaker
// and mirroring pauses until Redis answers again.
func (b *RedisBridge) Publish(ctx context.Context, event models.Event) {
	b.local.Publish(ctx, event)

	if b.breaker.IsOpen() {
		if err := b.client.Ping(ctx).Err(); err != nil {
			b.breaker.RecordFailure()
			return
		}
		if _, change := b.breaker.RecordSuccess(); change.Closed {
			b.logger.InfoContext(ctx, "redis mirror recovered", "breaker", b.breaker.Name())
		}
		if b.breaker.IsOpen() {
			return
		}
	}

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		b.logger.ErrorContext(ctx, "marshal event envelope", "error", err)
		return
	}
	if err := b.client.Publish(ctx, eventChannel, payload).Err(); err != nil {
		if _, change := b.breaker.RecordFailure(); change.Opened {
			b.logger.ErrorContext(ctx, "redis mirror unavailable, pausing", "breaker", b.breaker.Name())
		}
		b.logger.WarnContext(ctx, "mirror event to redis",
			"error", err,
			"action", string(event.Action),
			"submission_id", event.Submission.ID.String(),
		)
		return
	}
	b.breaker.RecordSuccess()
}

// Run subscribes to the shared channel and replays foreign events into the
// local broadcaster until ctx is cancelled. It blocks; run it on its own
// goroutine.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, eventChannel)
	defer sub.Close()

	// Force the subscription before reporting ready so no event is missed
	// between construction and the first receive.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", eventChannel)
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.WarnContext(ctx, "discard malformed bridge event", "error", err)
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.local.Publish(ctx, env.Event)
		}
	}
}
