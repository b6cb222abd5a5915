package cache

import (
	"context"
	"errors"
	"time"

	"github.com/diwise/bubble-client/pkg/bubble/types"
	"github.com/viccon/sturdyc"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// Config holds the settings of a result cache.
type Config struct {
	// Capacity is the maximum number of entries the cache can store.
	Capacity int
	// NumShards determines the number of cache shards for concurrent access.
	NumShards int
	// TTL is the time-to-live for cached entries.
	TTL time.Duration
	// EvictionPercentage is how many percent of the entries to evict when
	// the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int
	// MissingRecordStorage makes the cache remember identities that the
	// remote store reported as missing.
	MissingRecordStorage bool
	// EvictionInterval sets how often expired entries are swept. Zero
	// keeps the sturdyc default.
	EvictionInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		NumShards:            64,
		TTL:                  5 * time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	return nil
}

func (c Config) options() []sturdyc.Option {
	var options []sturdyc.Option

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Cache is a read-through cache of entities addressed by identity
type Cache struct {
	client *sturdyc.Client[types.Entity]
}

func New(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[types.Entity](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.options()...,
	)

	return &Cache{client: client}, nil
}

// Key builds the cache key of an object
func Key(typeName, id string) string {
	return typeName + KeySeparator + id
}

// GetOrFetch returns the cached entity for key or calls fetch to load it.
// A fetch that yields a nil entity is treated as a missing record and is
// reported as nil without error.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (types.Entity, error)) (types.Entity, error) {
	fetchFn := func(ctx context.Context) (types.Entity, error) {
		e, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if e == nil {
			return nil, sturdyc.ErrNotFound
		}

		return e, nil
	}

	e, err := c.client.GetOrFetch(ctx, key, fetchFn)
	if errors.Is(err, sturdyc.ErrNotFound) || errors.Is(err, sturdyc.ErrMissingRecord) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return e, nil
}

func (c *Cache) Delete(key string) {
	c.client.Delete(key)
}

func (c *Cache) Size() int {
	return c.client.Size()
}
