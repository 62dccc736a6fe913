// Package journal は発火したアクションの実行結果を SQLite に記録します。
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/history"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"

	_ "modernc.org/sqlite"
)

// timeLayout は文字列の大小と時刻順が一致する固定長の UTC 表記です
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS actions (
	id           TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	source       TEXT NOT NULL,
	side         TEXT NOT NULL,
	quantity     TEXT NOT NULL,
	family       TEXT NOT NULL,
	trigger_name TEXT NOT NULL,
	command      TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	presses      INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	elapsed_ms   INTEGER NOT NULL DEFAULT 0,
	detail       TEXT
);
CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at);
`

// Store は history.Journal の SQLite 実装です
type Store struct {
	db *sql.DB
}

// Open は path の DB を開き（無ければ作成し）、テーブルを用意します。
// ":memory:" を渡すとプロセス内だけの DB になります。
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal ディレクトリ作成エラー: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite オープンエラー: %w", err)
	}
	// 書き込みは1本に絞る（:memory: は接続ごとに別DBになるため）
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal スキーマ作成エラー: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record は history.Journal の実装です
func (s *Store) Record(ctx context.Context, e history.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (id, created_at, source, side, quantity, family, trigger_name, command, outcome, presses, failures, elapsed_ms, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.At.UTC().Format(timeLayout),
		string(e.Source),
		string(e.Side),
		e.Quantity.String(),
		e.Family,
		e.Trigger,
		e.Command,
		string(e.Outcome),
		e.Presses,
		e.Failures,
		e.Elapsed.Milliseconds(),
		nullable(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("journal 書き込みエラー (%s): %w", e.ID, err)
	}
	return nil
}

// Recent は新しい順に最大 limit 件を返します
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, source, side, quantity, family, trigger_name, command, outcome, presses, failures, elapsed_ms, detail
		 FROM actions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal 読み込みエラー: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			e                 history.Entry
			at, src, side, qt string
			outcome           string
			elapsedMs         int64
			detail            sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &src, &side, &qt, &e.Family, &e.Trigger, &e.Command, &outcome, &e.Presses, &e.Failures, &elapsedMs, &detail); err != nil {
			return nil, fmt.Errorf("journal 行の読み込みエラー: %w", err)
		}
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("journal 時刻が不正です (%s): %w", e.ID, err)
		}
		if e.Quantity, err = decimal.NewFromString(qt); err != nil {
			return nil, fmt.Errorf("journal 数量が不正です (%s): %w", e.ID, err)
		}
		e.Source = market.Source(src)
		e.Side = market.Side(side)
		e.Outcome = history.Outcome(outcome)
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if detail.Valid {
			e.Detail = detail.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
