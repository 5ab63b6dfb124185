package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster fans messages out across replicas through a Redis
// pub/sub channel. Local subscribers receive every message published by
// any replica, including this one, via the subscription loop.
type RedisBroadcaster[T any] struct {
	client  *redis.Client
	channel string
	local   *MemoryBroadcaster[T]
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	done    chan struct{}
	log     *slog.Logger
}

// NewRedisBroadcaster subscribes to channel and starts relaying incoming
// messages to local subscribers. bufferSize applies per local subscriber.
func NewRedisBroadcaster[T any](client *redis.Client, channel string, bufferSize int, log *slog.Logger) (*RedisBroadcaster[T], error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		return nil, errors.New("channel name is required")
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBroadcaster[T]{
		client:  client,
		channel: channel,
		local:   NewMemoryBroadcaster[T](bufferSize),
		pubsub:  client.Subscribe(ctx, channel),
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log,
	}

	go b.relay(ctx)
	return b, nil
}

// Subscribe registers a local subscriber for messages from all replicas.
func (b *RedisBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	return b.local.Subscribe(ctx)
}

// Broadcast publishes msg to Redis. Delivery to local subscribers happens
// through the relay loop so every replica sees the same stream.
func (b *RedisBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	payload, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Close stops the relay loop and closes all local subscribers.
func (b *RedisBroadcaster[T]) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	return errors.Join(err, b.local.Close())
}

func (b *RedisBroadcaster[T]) relay(ctx context.Context) {
	defer close(b.done)

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var data T
			if err := json.Unmarshal([]byte(m.Payload), &data); err != nil {
				b.log.ErrorContext(ctx, "dropping undecodable broadcast payload",
					slog.String("channel", b.channel), slog.Any("error", err))
				continue
			}
			_ = b.local.Broadcast(ctx, Message[T]{Data: data})
		}
	}
}
