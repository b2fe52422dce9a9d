package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"shop_support_console/internal/chat/domain"
	"shop_support_console/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// PubSub fan-out between console nodes and dashboard sessions
type PubSub interface {
	Publish(channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error
}

// ChatChannel redis channel of one conversation's dashboard pushes
func ChatChannel(chatID string) string {
	return "support:chat:" + chatID
}

// RosterChannel redis channel of conversation list pushes
const RosterChannel = "support:roster"

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

// Publish serialize message then publish to channel
func (r *RedisPubSub) Publish(channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, channel, data).Err()
}

// Subscribe listen on channel until ctx is cancelled, each payload is a
// dashboard WSResponse handed to handler
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error {
	sub := r.client.Subscribe(r.ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var resp domain.WSResponse
				if err := json.Unmarshal([]byte(m.Payload), &resp); err != nil {
					logger.Log.Errorf("pubsub payload unmarshal error:", err)
					continue
				}
				handler(resp)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
