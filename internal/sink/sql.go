package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	// database/sql 驱动
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLiteFileName SQLite数据库文件名
const SQLiteFileName = "sitemaps.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sitemap_sources (
		source       TEXT PRIMARY KEY,
		persisted_at TIMESTAMP NOT NULL,
		item_count   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sitemap_items (
		source   TEXT NOT NULL,
		position INTEGER NOT NULL,
		url      TEXT NOT NULL,
		PRIMARY KEY (source, position)
	)`,
}

// SQLSink 把条目写入关系数据库 (SQLite 或 PostgreSQL)
type SQLSink struct {
	db      *sql.DB
	dialect string
	logger  zerolog.Logger
}

// NewSQLiteSink 在 dir 下打开或创建 sitemaps.db
func NewSQLiteSink(dir string, logger zerolog.Logger) (*SQLSink, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, SQLiteFileName)+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("打开SQLite失败: %w", err)
	}
	// SQLite 只支持单写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("启用WAL失败: %w", err)
	}

	return newSQLSink(db, KindSQLite, logger)
}

// NewPostgresSink 连接 PostgreSQL
func NewPostgresSink(dsn string, logger zerolog.Logger) (*SQLSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开PostgreSQL失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接PostgreSQL失败: %w", err)
	}
	return newSQLSink(db, KindPostgres, logger)
}

func newSQLSink(db *sql.DB, dialect string, logger zerolog.Logger) (*SQLSink, error) {
	s := &SQLSink{db: db, dialect: dialect, logger: logger}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("创建表失败: %w", err)
		}
	}
	return s, nil
}

// rebind 把 ? 占位符转换为当前方言的形式
func (s *SQLSink) rebind(query string) string {
	if s.dialect != KindPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Persist 在一个事务中删除来源的旧条目并写入新条目
func (s *SQLSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM sitemap_items WHERE source = ?`), source); err != nil {
		return 0, fmt.Errorf("删除旧条目失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO sitemap_items (source, position, url) VALUES (?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("准备插入语句失败: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, source, i, item); err != nil {
			return 0, fmt.Errorf("插入条目失败: %w", err)
		}
	}

	upsert := `INSERT INTO sitemap_sources (source, persisted_at, item_count) VALUES (?, ?, ?)
		ON CONFLICT (source) DO UPDATE SET persisted_at = excluded.persisted_at, item_count = excluded.item_count`
	if _, err := tx.ExecContext(ctx, s.rebind(upsert), source, time.Now().UTC(), len(items)); err != nil {
		return 0, fmt.Errorf("更新来源失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}

	s.logger.Debug().Str("source", source).Int("count", len(items)).Str("dialect", s.dialect).Msg("条目已写入数据库")
	return len(items), nil
}

// Items 按写入顺序读取来源的条目
func (s *SQLSink) Items(ctx context.Context, source string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT url FROM sitemap_items WHERE source = ? ORDER BY position`), source)
	if err != nil {
		return nil, fmt.Errorf("查询条目失败: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("读取条目失败: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SourceCount 已持久化的来源数
func (s *SQLSink) SourceCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sitemap_sources`).Scan(&n)
	return n, err
}

// Close 关闭数据库连接
func (s *SQLSink) Close() error {
	return s.db.Close()
}
