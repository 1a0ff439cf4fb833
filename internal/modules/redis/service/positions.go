package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"signal_bot/internal/models"
)

// Hashes is the part of the redis client the mirror uses.
type Hashes interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// Positions mirrors the per-asset futures state into one redis hash so a
// restarted process resumes gating where it stopped.
type Positions struct {
	rdb Hashes
	key string
}

func NewPositions(rdb Hashes, prefix string) *Positions {
	return &Positions{rdb: rdb, key: prefix + "positions"}
}

func (p *Positions) SavePosition(ctx context.Context, asset string, st models.PositionState) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("redis.SavePosition: %w", err)
		}
	}()
	if st == models.PositionNeutral || st == "" {
		return p.rdb.HDel(ctx, p.key, asset).Err()
	}
	return p.rdb.HSet(ctx, p.key, asset, string(st)).Err()
}

func (p *Positions) LoadPositions(ctx context.Context) (out map[string]models.PositionState, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("redis.LoadPositions: %w", err)
		}
	}()
	raw, err := p.rdb.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, err
	}
	out = make(map[string]models.PositionState, len(raw))
	for asset, v := range raw {
		switch st := models.PositionState(v); st {
		case models.PositionLong, models.PositionShort:
			out[asset] = st
		}
	}
	return out, nil
}
