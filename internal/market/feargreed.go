package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

const (
	fearGreedAPIURL   = "https://api.alternative.me/fng/?limit=1"
	fearGreedCacheKey = "market:feargreed"
	fearGreedCacheTTL = time.Hour
)

var _ domain.MarketDataPort = (*FearGreedClient)(nil)

// FearGreedClient is the domain.MarketDataPort adapter, pulling the Crypto
// Fear & Greed Index from alternative.me. Grounded on
// cmd/agents/sentiment-agent/main.go's fetchFearGreedIndex — same endpoint,
// same response shape — with the agent's hand-rolled in-process mutex/TTL
// cache replaced by a Redis cache using redis_cache.go's short-timeout idiom,
// so a reading is shared across every pipeline tick in the process (and
// across processes, if they share Redis) instead of living on one agent's
// struct field.
type FearGreedClient struct {
	httpClient *http.Client
	redis      *redis.Client
}

// NewFearGreedClient builds a client. redisClient may be nil, in which case
// every call hits the API directly with no caching.
func NewFearGreedClient(redisClient *redis.Client) *FearGreedClient {
	return &FearGreedClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		redis:      redisClient,
	}
}

// GetFearGreedIndex returns the latest reading, consulting the Redis cache
// first. A fetch failure degrades to FearGreed{Available: false} rather
// than propagating an error, since this is an optional market-wide signal
// (§4.4.5) the pipeline can proceed without.
func (f *FearGreedClient) GetFearGreedIndex(ctx context.Context) (domain.FearGreed, error) {
	if cached, ok := f.readCache(ctx); ok {
		return cached, nil
	}

	fg, err := f.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("fear & greed index fetch failed, signal unavailable this tick")
		return domain.FearGreed{Available: false}, nil
	}

	f.writeCache(ctx, fg)
	return fg, nil
}

func (f *FearGreedClient) readCache(ctx context.Context) (domain.FearGreed, bool) {
	if f.redis == nil {
		return domain.FearGreed{}, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := f.redis.Get(cacheCtx, fearGreedCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Msg("redis get error for fear & greed cache, treating as miss")
		}
		return domain.FearGreed{}, false
	}

	var fg domain.FearGreed
	if err := json.Unmarshal([]byte(cached), &fg); err != nil {
		log.Warn().Err(err).Msg("failed to unmarshal cached fear & greed reading")
		return domain.FearGreed{}, false
	}
	return fg, true
}

func (f *FearGreedClient) writeCache(ctx context.Context, fg domain.FearGreed) {
	if f.redis == nil {
		return
	}

	data, err := json.Marshal(fg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal fear & greed reading for cache")
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := f.redis.Set(cacheCtx, fearGreedCacheKey, data, fearGreedCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to cache fear & greed reading")
	}
}

func (f *FearGreedClient) fetch(ctx context.Context) (domain.FearGreed, error) {
	return f.fetchAt(ctx, fearGreedAPIURL)
}

// fetchAt hits url directly, bypassing the package-level endpoint constant —
// split out so tests can point it at an httptest server.
func (f *FearGreedClient) fetchAt(ctx context.Context, url string) (domain.FearGreed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.FearGreed{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.FearGreed{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.FearGreed{}, fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.FearGreed{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return domain.FearGreed{}, fmt.Errorf("no data in response")
	}

	var value int
	if _, err := fmt.Sscanf(parsed.Data[0].Value, "%d", &value); err != nil {
		return domain.FearGreed{}, fmt.Errorf("failed to parse value %q: %w", parsed.Data[0].Value, err)
	}

	return domain.FearGreed{
		Available:      true,
		Value:          value,
		Classification: parsed.Data[0].Classification,
	}, nil
}
