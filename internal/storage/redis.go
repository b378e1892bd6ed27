package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Matej398/crypto-folio/internal/config"
	"github.com/Matej398/crypto-folio/internal/models"
)

// ErrSessionNotFound is returned when a session token is unknown or expired
var ErrSessionNotFound = errors.New("session not found")

// quoteRetention bounds how long a cached quote survives. Stale quotes
// within this window are still served so a feed outage shows the last
// known values instead of zeroes; the caller judges freshness by
// ObservedAt.
const quoteRetention = 24 * time.Hour

// RedisCache wraps the Redis client. It backs two concerns: session
// tokens and the price-quote cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client, used by tests
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}

func quoteKey(coinID string) string {
	return "quote:" + coinID
}

// SetSession stores a session token for a user with the given TTL
func (r *RedisCache) SetSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKey(token), strconv.FormatInt(userID, 10), ttl).Err()
}

// GetSession resolves a session token to a user id
func (r *RedisCache) GetSession(ctx context.Context, token string) (int64, error) {
	raw, err := r.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session entry: %w", err)
	}
	return userID, nil
}

// DeleteSession invalidates a session token
func (r *RedisCache) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKey(token)).Err()
}

// CacheQuotes stores freshly fetched quotes. Entries are retained well
// past their freshness window on purpose.
func (r *RedisCache) CacheQuotes(ctx context.Context, quotes map[string]models.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for coinID, quote := range quotes {
		raw, err := json.Marshal(quote)
		if err != nil {
			return err
		}
		pipe.Set(ctx, quoteKey(coinID), raw, quoteRetention)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedQuotes returns whatever cached quotes exist for the given coin
// ids. Missing and corrupt entries are simply absent from the result.
func (r *RedisCache) GetCachedQuotes(ctx context.Context, coinIDs []string) (map[string]models.PriceQuote, error) {
	quotes := make(map[string]models.PriceQuote, len(coinIDs))
	if len(coinIDs) == 0 {
		return quotes, nil
	}

	keys := make([]string, len(coinIDs))
	for i, id := range coinIDs {
		keys[i] = quoteKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var quote models.PriceQuote
		if err := json.Unmarshal([]byte(raw), &quote); err != nil {
			continue
		}
		quotes[coinIDs[i]] = quote
	}

	return quotes, nil
}
