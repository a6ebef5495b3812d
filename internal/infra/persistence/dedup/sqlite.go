package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	_ "modernc.org/sqlite"
)

const createViewedSQLite = `CREATE TABLE IF NOT EXISTS viewed (
	id TEXT NOT NULL,
	price INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (id, price)
)`

type sqliteGate struct {
	conn *sql.DB
}

func InitSQLiteGate(path string) (Gate, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(createViewedSQLite); err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建viewed表失败: %w", err)
	}
	return &sqliteGate{conn: conn}, nil
}

func (g *sqliteGate) Exists(ctx context.Context, id model.ItemID, price int) (bool, error) {
	var n int
	err := g.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM viewed WHERE id = ? AND price = ?`, id.String(), price).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("查询viewed失败: %w", err)
	}
	return n > 0, nil
}

func (g *sqliteGate) Mark(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := g.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO viewed (id, price) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.ID.String(), it.Price()); err != nil {
			return fmt.Errorf("写入viewed失败: %w", err)
		}
	}
	return tx.Commit()
}

func (g *sqliteGate) Close() error {
	return g.conn.Close()
}
