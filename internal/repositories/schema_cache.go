package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"backend/internal/models"
)

// SchemaCache holds column descriptors for a short time. It never answers
// whether a table exists.
type SchemaCache interface {
	Get(ctx context.Context, table string) ([]models.ColumnDescriptor, bool, error)
	Set(ctx context.Context, table string, columns []models.ColumnDescriptor) error
}

type RedisSchemaCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSchemaCache(rdb *redis.Client, dbSchema string, ttl time.Duration) *RedisSchemaCache {
	return &RedisSchemaCache{
		rdb:    rdb,
		prefix: "tables:columns:" + dbSchema + ":",
		ttl:    ttl,
	}
}

func (c *RedisSchemaCache) Get(ctx context.Context, table string) ([]models.ColumnDescriptor, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+table).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var columns []models.ColumnDescriptor
	if err := json.Unmarshal(raw, &columns); err != nil {
		return nil, false, err
	}
	return columns, true, nil
}

func (c *RedisSchemaCache) Set(ctx context.Context, table string, columns []models.ColumnDescriptor) error {
	raw, err := json.Marshal(columns)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+table, raw, c.ttl).Err()
}

// NoopSchemaCache is used when no Redis address is configured.
type NoopSchemaCache struct{}

func (NoopSchemaCache) Get(context.Context, string) ([]models.ColumnDescriptor, bool, error) {
	return nil, false, nil
}

func (NoopSchemaCache) Set(context.Context, string, []models.ColumnDescriptor) error {
	return nil
}
