package database

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

// ConnectRedis opens the client used to bridge hub instances. Redis is
// optional: when REDIS_ADDR is unset the hub runs single-instance and this
// returns nil without connecting.
func ConnectRedis() error {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Println("REDIS_ADDR not set, hub runs without cross-instance bridge")
		return nil
	}

	Redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		Redis = nil
		return err
	}

	log.Println("Connected to Redis successfully")
	return nil
}

func DisconnectRedis() error {
	if Redis == nil {
		return nil
	}
	return Redis.Close()
}
