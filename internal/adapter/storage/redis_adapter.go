package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter is the read accelerator: write-through stock snapshots and
// request-dedup keys. Losing every key is harmless; the repository and the
// journal stay authoritative.
type RedisAdapter struct {
	client *redis.Client
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func stockKey(key domain.InventoryKey) string {
	return stockKeyPrefix + key.String()
}

// Stock snapshots are stored as "version:quantity" and written through a
// script so a write for an older record version never overwrites a newer one,
// whatever order the commits' writes reach Redis in.
var setStockScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local v = tonumber(string.match(cur, '^(%d+):'))
	if v and v >= tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1] .. ':' .. ARGV[2])
return 1
`)

func (r *RedisAdapter) SetStock(ctx context.Context, key domain.InventoryKey, quantity int64, version int) error {
	return setStockScript.Run(ctx, r.client, []string{stockKey(key)}, version, quantity).Err()
}

func (r *RedisAdapter) GetStock(ctx context.Context, key domain.InventoryKey) (int64, bool, error) {
	val, err := r.client.Get(ctx, stockKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	_, raw, found := strings.Cut(val, ":")
	if !found {
		return 0, false, fmt.Errorf("malformed stock payload %q", val)
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed stock payload %q: %w", val, err)
	}
	return qty, true, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
