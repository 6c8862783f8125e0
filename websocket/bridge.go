package websocket

import (
	"context"
	"encoding/json"
	"log"

	"weatherfit/models"

	"github.com/redis/go-redis/v9"
)

// bridgeChannel carries room broadcasts between hub instances.
const bridgeChannel = "chat:broadcast"

// BridgeFrame wraps a room broadcast with its origin instance so a hub can
// ignore its own echoes.
type BridgeFrame struct {
	Origin string          `json:"origin"`
	Room   string          `json:"roomId"`
	Env    models.Envelope `json:"envelope"`
}

// Publisher mirrors room broadcasts to the other hub instances.
type Publisher interface {
	Publish(ctx context.Context, frame BridgeFrame) error
}

// RedisBridge is the redis pub/sub implementation of the hub bridge.
type RedisBridge struct {
	rdb *redis.Client
}

func NewRedisBridge(rdb *redis.Client) *RedisBridge {
	return &RedisBridge{rdb: rdb}
}

func (b *RedisBridge) Publish(ctx context.Context, frame BridgeFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, bridgeChannel, data).Err()
}

// Listen subscribes to the bridge channel and feeds received frames into
// the manager until ctx is cancelled.
func (b *RedisBridge) Listen(ctx context.Context, m *Manager) {
	go func() {
		pubsub := b.rdb.Subscribe(ctx, bridgeChannel)
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var frame BridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.Printf("❌ Bridge frame unmarshal error: %v", err)
				continue
			}
			m.DeliverBridge(frame)
		}
	}()
}
