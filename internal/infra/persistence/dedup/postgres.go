package dedup

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createViewedPostgres = `CREATE TABLE IF NOT EXISTS viewed (
	id TEXT NOT NULL,
	price BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (id, price)
)`

// pgConn is the subset of *pgxpool.Pool the gate uses.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type postgresGate struct {
	conn  pgConn
	close func()
}

func InitPostgresGate(ctx context.Context, dsn string) (Gate, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析数据库DSN失败: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	g, err := newPostgresGate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	g.close = pool.Close
	return g, nil
}

func newPostgresGate(ctx context.Context, conn pgConn) (*postgresGate, error) {
	if _, err := conn.Exec(ctx, createViewedPostgres); err != nil {
		return nil, fmt.Errorf("创建viewed表失败: %w", err)
	}
	return &postgresGate{conn: conn}, nil
}

func (g *postgresGate) Exists(ctx context.Context, id model.ItemID, price int) (bool, error) {
	var ok bool
	err := g.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM viewed WHERE id = $1 AND price = $2)`, id.String(), price).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("查询viewed失败: %w", err)
	}
	return ok, nil
}

func (g *postgresGate) Mark(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(`INSERT INTO viewed (id, price) VALUES ($1, $2) ON CONFLICT (id, price) DO NOTHING`,
			it.ID.String(), it.Price())
	}
	br := g.conn.SendBatch(ctx, b)
	for range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("写入viewed失败: %w", err)
		}
	}
	return br.Close()
}

func (g *postgresGate) Close() error {
	if g.close != nil {
		g.close()
	}
	return nil
}
