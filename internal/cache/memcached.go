package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/pasture-weather-service/internal/models"
)

const keyPrefix = "simulation:"

// maxRelativeExp is the largest expiration memcached treats as relative seconds.
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedCache implements Cache on memcached with MessagePack values.
// Results larger than the server item limit fail Set; callers treat that as a cache error.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated server list;
// an empty list falls back to localhost:11211. Zero timeout or maxIdleConns keep client defaults.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements Cache.Get.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.SimulationResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.SimulationResult{}, false, err
	}
	item, err := c.client.Get(keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return models.SimulationResult{}, false, nil
	}
	if err != nil {
		return models.SimulationResult{}, false, err
	}
	v, err := decodeResult(item.Value)
	if err != nil {
		return models.SimulationResult{}, false, fmt.Errorf("decode cached simulation: %w", err)
	}
	return v, true, nil
}

// Set implements Cache.Set. TTLs outside memcached's relative range fall back to one hour.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.SimulationResult, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeResult(value)
	if err != nil {
		return fmt.Errorf("encode simulation: %w", err)
	}
	return c.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

func expirationSeconds(ttl time.Duration) int32 {
	sec := int64(ttl / time.Second)
	if sec <= 0 || sec > maxRelativeExp {
		return 3600
	}
	return int32(sec)
}

// Ping checks memcached reachability for /health.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close releases idle connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
