// Package checkpoint tracks which organizations a batch run has already
// processed, so an interrupted run can resume without re-crawling. Backed by
// a Redis set; entirely optional, and every failure degrades to "not
// processed" so the pipeline just does the work again.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Checkpoint struct {
	client *redis.Client
	key    string
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

func New(ctx context.Context, cfg Config) (*Checkpoint, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Checkpoint{client: client, key: cfg.Key}, nil
}

func (c *Checkpoint) Close() {
	if err := c.client.Close(); err != nil {
		slog.Error("Failed to close redis client", "error", err)
	}
}

// Seen reports whether the organization was already processed. Errors degrade
// to false.
func (c *Checkpoint) Seen(ctx context.Context, orgName string) bool {
	ok, err := c.client.SIsMember(ctx, c.key, orgName).Result()
	if err != nil {
		slog.Warn("Checkpoint lookup failed", "org", orgName, "error", err)
		return false
	}
	return ok
}

// Mark records the organization as processed.
func (c *Checkpoint) Mark(ctx context.Context, orgName string) {
	if err := c.client.SAdd(ctx, c.key, orgName).Err(); err != nil {
		slog.Warn("Checkpoint mark failed", "org", orgName, "error", err)
	}
}

// Clear drops the checkpoint set, typically at the start of a fresh full run.
func (c *Checkpoint) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
