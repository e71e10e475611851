package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch-sim/internal/ports"

	"github.com/redis/go-redis/v9"
)

const legKeyPrefix = "leg:"

// RedisLegCache keeps road-network leg estimates in Redis so repeated
// runs against the same datasets skip the routing backend. Values are
// JSON encoded LegEstimate documents.
type RedisLegCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLegCache wraps an existing client. A zero ttl keeps entries
// until Redis evicts them.
func NewRedisLegCache(client *redis.Client, ttl time.Duration) *RedisLegCache {
	return &RedisLegCache{client: client, ttl: ttl}
}

// DialRedis connects to a Redis instance and verifies it is reachable.
func DialRedis(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}

// Fetch cached estimates for a batch of leg keys. Missing keys are
// simply absent from the returned map.
func (r *RedisLegCache) GetMany(ctx context.Context, keys []string) (map[string]ports.LegEstimate, error) {
	if r.client == nil {
		return nil, errors.New("leg cache: redis client is nil")
	}

	if len(keys) == 0 {
		return map[string]ports.LegEstimate{}, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = legKeyPrefix + k
	}

	values, err := r.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("get leg cache: mget: %w", err)
	}

	out := make(map[string]ports.LegEstimate, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}

		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("get leg cache: unexpected value type %T for key %q", v, keys[i])
		}

		var leg ports.LegEstimate
		if err := json.Unmarshal([]byte(raw), &leg); err != nil {
			return nil, fmt.Errorf("get leg cache: decode key %q: %w", keys[i], err)
		}
		out[keys[i]] = leg
	}

	return out, nil
}

// Store a batch of leg estimates in a single pipelined round trip.
func (r *RedisLegCache) PutMany(ctx context.Context, legs map[string]ports.LegEstimate) error {
	if r.client == nil {
		return errors.New("leg cache: redis client is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for key, leg := range legs {
		raw, err := json.Marshal(leg)
		if err != nil {
			return fmt.Errorf("insert leg cache: encode key %q: %w", key, err)
		}
		pipe.Set(ctx, legKeyPrefix+key, raw, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert leg cache: pipeline exec: %w", err)
	}

	return nil
}
