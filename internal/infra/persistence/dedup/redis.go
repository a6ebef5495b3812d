package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const (
	viewedKey      = "listingwatch:viewed"
	redisPingLimit = 5 * time.Second
)

type redisGate struct {
	client *redis.Client
}

func InitRedisGate(ctx context.Context, addr string, db int) (Gate, error) {
	if addr == "" {
		return nil, fmt.Errorf("未配置redis地址")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingLimit)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接redis失败: %w", err)
	}
	return &redisGate{client: client}, nil
}

func (g *redisGate) Exists(ctx context.Context, id model.ItemID, price int) (bool, error) {
	ok, err := g.client.SIsMember(ctx, viewedKey, member(id, price)).Result()
	if err != nil {
		return false, fmt.Errorf("查询viewed失败: %w", err)
	}
	return ok, nil
}

func (g *redisGate) Mark(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	members := make([]any, len(items))
	for i, it := range items {
		members[i] = member(it.ID, it.Price())
	}
	if err := g.client.SAdd(ctx, viewedKey, members...).Err(); err != nil {
		return fmt.Errorf("写入viewed失败: %w", err)
	}
	return nil
}

func (g *redisGate) Close() error {
	return g.client.Close()
}
