package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"gemdrop/internal/game"
	"gemdrop/internal/session"
)

const difficultyCacheTTL = 24 * time.Hour

// CachedDifficulty fronts a DifficultyStore with redis. Cache misses and
// redis failures fall through to the inner store; the cache is never the
// source of truth.
type CachedDifficulty struct {
	inner session.DifficultyStore
	rdb   *redis.Client
}

func NewCachedDifficulty(inner session.DifficultyStore, redisURL string) (*CachedDifficulty, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &CachedDifficulty{inner: inner, rdb: redis.NewClient(opt)}, nil
}

func (c *CachedDifficulty) Difficulty(ctx context.Context, playerID string, gt game.GameType) (game.DifficultyState, bool, error) {
	key := difficultyKey(playerID, gt)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var st game.DifficultyState
		if err := json.Unmarshal(raw, &st); err == nil {
			return st, true, nil
		}
	}
	st, found, err := c.inner.Difficulty(ctx, playerID, gt)
	if err != nil || !found {
		return st, found, err
	}
	c.put(ctx, key, st)
	return st, true, nil
}

func (c *CachedDifficulty) SaveDifficulty(ctx context.Context, playerID string, gt game.GameType, st game.DifficultyState) error {
	if err := c.inner.SaveDifficulty(ctx, playerID, gt, st); err != nil {
		return err
	}
	c.put(ctx, difficultyKey(playerID, gt), st)
	return nil
}

func (c *CachedDifficulty) put(ctx context.Context, key string, st game.DifficultyState) {
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, difficultyCacheTTL).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("difficulty cache write failed")
	}
}

func (c *CachedDifficulty) Close() error {
	return c.rdb.Close()
}

func difficultyKey(playerID string, gt game.GameType) string {
	return fmt.Sprintf("difficulty:%s:%s", playerID, gt)
}
