package dedup

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LouYuanbo1/listingwatch/internal/config"
	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
)

// Gate is a seen-record store keyed by (id, price): a price change makes
// a listing new again.
type Gate interface {
	Exists(ctx context.Context, id model.ItemID, price int) (bool, error)
	Mark(ctx context.Context, items []model.Item) error
	Close() error
}

// InitGate opens the backend named by cfg.Dedup.
func InitGate(ctx context.Context, cfg config.Storage) (Gate, error) {
	switch cfg.Dedup {
	case "", "sqlite":
		return InitSQLiteGate(cfg.SQLitePath)
	case "postgres":
		return InitPostgresGate(ctx, cfg.PostgresDSN)
	case "redis":
		return InitRedisGate(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("未知去重存储: %q", cfg.Dedup)
	}
}

func member(id model.ItemID, price int) string {
	return id.String() + "|" + strconv.Itoa(price)
}
