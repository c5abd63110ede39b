package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"rental-messenger/config"
)

// RedisConnect opens the client backing the socket.io adapter.
func RedisConnect(ctx context.Context, cfg config.Service, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Info("Connection opened to Redis", "addr", client.Options().Addr, "db", cfg.RedisDB)
	return client, nil
}
