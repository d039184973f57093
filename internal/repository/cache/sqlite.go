package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, err
	}

	// An in-memory database exists once per connection.
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{
		db:     db,
		logger: l,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}

	l.Info("sqlite cache initialized", "path", path)

	return c, nil
}

// sqliteDSN adds a busy timeout and WAL journaling unless the caller already
// passed connection parameters.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Name() string {
	return "sqlite"
}

func (c *SQLiteCache) Get(ctx context.Context, k tile.Key) ([]byte, bool, error) {
	coord, err := tile.ParseKey(k)
	if err != nil {
		return nil, false, err
	}

	query := `SELECT tile_data
	FROM tile_cache
	WHERE z = ? AND x = ? AND y = ?`

	var tileData []byte
	err = c.db.QueryRowContext(ctx, query, coord.Z, coord.X, coord.Y).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Error("sqlite cache get failed", "key", k, "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, e Entry) error {
	coord, err := tile.ParseKey(e.Key)
	if err != nil {
		return err
	}

	query := `INSERT INTO tile_cache (z, x, y, tile_data, size, stored_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(z, x, y) DO UPDATE SET
		tile_data = excluded.tile_data,
		size = excluded.size,
		stored_at = excluded.stored_at`

	_, err = c.db.ExecContext(ctx, query, coord.Z, coord.X, coord.Y, e.Data, len(e.Data), e.StoredAt.UnixNano())
	if err != nil {
		c.logger.Error("sqlite cache set failed", "key", e.Key, "error", err)
		return err
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, k tile.Key) error {
	coord, err := tile.ParseKey(k)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `DELETE FROM tile_cache WHERE z = ? AND x = ? AND y = ?`, coord.Z, coord.X, coord.Y)
	return err
}

func (c *SQLiteCache) Scan(ctx context.Context) ([]EntryInfo, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT z, x, y, size, stored_at FROM tile_cache ORDER BY stored_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []EntryInfo
	for rows.Next() {
		var (
			coord    tile.Coordinate
			size     int64
			storedAt int64
		)
		if err := rows.Scan(&coord.Z, &coord.X, &coord.Y, &size, &storedAt); err != nil {
			return nil, err
		}
		infos = append(infos, EntryInfo{
			Key:      coord.Key(),
			Size:     size,
			StoredAt: time.Unix(0, storedAt),
		})
	}

	return infos, rows.Err()
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM tile_cache`)
	return err
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
