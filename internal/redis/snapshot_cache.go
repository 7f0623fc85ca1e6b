package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopfloor/floorstate/internal/domain"
)

// defaultTTL keeps cached snapshots around long enough to survive a few
// missed cycles but not long enough to masquerade as live data.
const defaultTTL = 5 * time.Minute

func snapshotKey(view string) string { return "floor:snapshot:" + view }

// SnapshotCache mirrors the latest published payload per view into Redis so
// sibling dashboard processes can read the current floor picture without
// querying the fact store themselves. Payloads are opaque bytes; the monitor
// owns the encoding.
type SnapshotCache interface {
	Put(ctx context.Context, view string, payload []byte, ttl time.Duration) error
	Get(ctx context.Context, view string) ([]byte, error)
}

type snapshotCache struct {
	client *redis.Client
}

// NewSnapshotCache creates a Redis-backed SnapshotCache.
func NewSnapshotCache(client *redis.Client) SnapshotCache {
	return &snapshotCache{client: client}
}

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func (c *snapshotCache) Put(ctx context.Context, view string, payload []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = defaultTTL
	}
	if err := c.client.Set(ctx, snapshotKey(view), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis put snapshot for view %s: %w", view, err)
	}
	return nil
}

func (c *snapshotCache) Get(ctx context.Context, view string) ([]byte, error) {
	data, err := c.client.Get(ctx, snapshotKey(view)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &domain.SnapshotNotFoundError{View: view}
		}
		return nil, fmt.Errorf("redis get snapshot for view %s: %w", view, err)
	}
	return data, nil
}
