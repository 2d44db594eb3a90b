// Package cache fronts the registry's public-number lookup with Redis so the
// unauthenticated validation endpoint does not hammer the primary store. The
// cache holds certificate snapshots, never validation verdicts: effective
// status is recomputed on every read, so lazy expiry still works.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"attesta/internal/certificate/models"
)

const keyPrefix = "attesta:cert:"

// Redis is a read-through certificate cache. All failures degrade to a miss;
// the cache is an optimization, never a source of truth.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached certificate for a public number, or (nil, false) on
// miss or any transport/decode failure.
func (c *Redis) Get(ctx context.Context, publicNumber string) (*models.Certificate, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+publicNumber).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "certificate cache read failed",
				"public_number", publicNumber, "error", err.Error())
		}
		return nil, false
	}
	var cert models.Certificate
	if err := json.Unmarshal(raw, &cert); err != nil {
		c.logger.WarnContext(ctx, "certificate cache decode failed",
			"public_number", publicNumber, "error", err.Error())
		return nil, false
	}
	return &cert, true
}

// Set stores a certificate snapshot keyed by its public number.
func (c *Redis) Set(ctx context.Context, cert *models.Certificate) {
	if cert == nil {
		return
	}
	raw, err := json.Marshal(cert)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+cert.PublicNumber, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "certificate cache write failed",
			"public_number", cert.PublicNumber, "error", err.Error())
	}
}

// Invalidate drops the snapshot after a status transition.
func (c *Redis) Invalidate(ctx context.Context, publicNumber string) {
	if err := c.client.Del(ctx, keyPrefix+publicNumber).Err(); err != nil {
		c.logger.WarnContext(ctx, "certificate cache invalidation failed",
			"public_number", publicNumber, "error", err.Error())
	}
}
