package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the redis channel carrying permission invalidations.
const InvalidationChannel = "rbac.permissions.invalidate"

// LocalInvalidator applies invalidations received from other instances.
type LocalInvalidator interface {
	DropLocal(roleIDs []int64)
	ClearLocal()
}

type invalidationMessage struct {
	Origin  string  `json:"origin"`
	RoleIDs []int64 `json:"role_ids,omitempty"`
	All     bool    `json:"all,omitempty"`
}

// RedisBroadcaster publishes and receives permission invalidations over redis
// pub/sub so every instance drops stale entries.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisBroadcaster constructs a broadcaster on InvalidationChannel.
func NewRedisBroadcaster(client *redis.Client, logger *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: InvalidationChannel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// PublishInvalidation announces that roleIDs (or every role when all is set) changed.
func (b *RedisBroadcaster) PublishInvalidation(ctx context.Context, roleIDs []int64, all bool) error {
	if b == nil || b.client == nil {
		return nil
	}
	payload, err := json.Marshal(invalidationMessage{Origin: b.origin, RoleIDs: roleIDs, All: all})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("rbac: publish invalidation: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and applies remote invalidations to target
// until ctx is cancelled. Messages published by this broadcaster are skipped.
// It returns once the subscription is confirmed.
func (b *RedisBroadcaster) Listen(ctx context.Context, target LocalInvalidator) error {
	if b == nil || b.client == nil {
		return nil
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("rbac: subscribe %s: %w", b.channel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.apply(msg.Payload, target)
			}
		}
	}()
	return nil
}

func (b *RedisBroadcaster) apply(payload string, target LocalInvalidator) {
	var msg invalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		// Undecodable payloads clear the whole cache.
		b.warn("rbac decode invalidation", err)
		target.ClearLocal()
		return
	}
	if msg.Origin == b.origin {
		return
	}
	if msg.All {
		target.ClearLocal()
		return
	}
	if len(msg.RoleIDs) > 0 {
		target.DropLocal(msg.RoleIDs)
	}
}

func (b *RedisBroadcaster) warn(msg string, err error) {
	if b.logger != nil {
		b.logger.Warn(msg, slog.Any("error", err))
	}
}
