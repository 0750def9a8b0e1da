package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/eventbus"

	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisEventBus publishes events to Redis Streams, one stream per event type,
// and consumes them through a consumer group.
type RedisEventBus struct {
	client        *redis.Client
	prefix        string
	group         string
	typeFactories map[string]func() events.Event
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisOptions tune the client created by NewWithRedis.
type RedisOptions struct {
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewWithRedis creates a new Redis-backed event bus.
// url: Redis connection URL (e.g., "redis://localhost:6379/0")
// prefix: stream name prefix, one stream per event type is derived from it
// group: consumer group name for event processing
func NewWithRedis(
	url, prefix, group string,
	opts *RedisOptions,
	logger *slog.Logger,
) (*RedisEventBus, error) {
	if url == "" || prefix == "" || group == "" {
		return nil, fmt.Errorf("redis event bus: url, prefix, and group are required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	if opts != nil {
		if opts.PoolSize > 0 {
			opt.PoolSize = opts.PoolSize
		}
		if opts.DialTimeout > 0 {
			opt.DialTimeout = opts.DialTimeout
		}
		if opts.ReadTimeout > 0 {
			opt.ReadTimeout = opts.ReadTimeout
		}
		if opts.WriteTimeout > 0 {
			opt.WriteTimeout = opts.WriteTimeout
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		prefix:        prefix,
		group:         group,
		typeFactories: events.EventTypes,
		logger:        logger.With("component", "redis-event-bus"),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Emit publishes an event to the stream of its type.
func (b *RedisEventBus) Emit(ctx context.Context, event events.Event) error {
	if b.client == nil {
		return fmt.Errorf("redis event bus: client not initialized")
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: marshal failed: %w", err)
	}

	env := envelope{Type: event.Type(), Payload: data}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redis event bus: envelope marshal failed: %w", err)
	}

	stream := streamNameFor(b.prefix, events.EventType(event.Type()))
	if _, err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"event": string(envBytes)},
	}).Result(); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type(), "stream", stream)
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}

	b.logger.Debug("event emitted", "type", event.Type(), "stream", stream)
	return nil
}

// Register starts a consumer on the stream of eventType, calling handler for each event.
// Messages whose handler fails are copied to the type's DLQ stream and acknowledged.
func (b *RedisEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	stream := streamNameFor(b.prefix, eventType)
	consumer := fmt.Sprintf("consumer-%s-%d", eventType, time.Now().UnixNano())
	if err := b.client.XGroupCreateMkStream(b.ctx, stream, b.group, "0").Err(); err != nil &&
		!strings.HasPrefix(err.Error(), "BUSYGROUP") {
		b.logger.Error("failed to create consumer group", "error", err, "stream", stream)
	}
	b.logger.Info("registering handler", "event_type", eventType, "consumer", consumer)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			if b.ctx.Err() != nil {
				return
			}
			res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
				Group:    b.group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    5 * time.Second,
			}).Result()
			if err != nil {
				if b.ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Error("error reading from stream", "error", err, "consumer", consumer)
					time.Sleep(time.Second)
				}
				continue
			}
			for _, s := range res {
				for _, msg := range s.Messages {
					b.handle(eventType, handler, msg)
					if err := b.client.XAck(b.ctx, stream, b.group, msg.ID).Err(); err != nil {
						b.logger.Error("failed to acknowledge message", "error", err, "msg_id", msg.ID)
					}
				}
			}
		}
	}()
}

func (b *RedisEventBus) handle(eventType events.EventType, handler eventbus.HandlerFunc, msg redis.XMessage) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Error("failed to unmarshal envelope", "error", err)
		b.pushToDLQ(eventType, msg.Values)
		return
	}
	constructor, ok := b.typeFactories[env.Type]
	if !ok {
		b.logger.Error("unknown event type", "event_type", env.Type)
		b.pushToDLQ(eventType, msg.Values)
		return
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		b.logger.Error("failed to unmarshal payload", "error", err, "event_type", env.Type)
		b.pushToDLQ(eventType, msg.Values)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered", "panic", r, "event_type", env.Type)
			b.pushToDLQ(eventType, msg.Values)
		}
	}()
	if err := handler(b.ctx, evt); err != nil {
		b.logger.Error("handler error", "error", err, "event_type", env.Type)
		b.pushToDLQ(eventType, msg.Values)
	}
}

// pushToDLQ copies the raw message to the DLQ stream of its type for inspection.
func (b *RedisEventBus) pushToDLQ(eventType events.EventType, values map[string]any) {
	dlqStream := dlqStreamName(b.prefix, eventType)
	if _, err := b.client.XAdd(b.ctx, &redis.XAddArgs{
		Stream: dlqStream,
		Values: values,
	}).Result(); err != nil {
		b.logger.Error("failed to push to DLQ", "error", err, "stream", dlqStream)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlqStream)
}

// Close stops every consumer and closes the client.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
