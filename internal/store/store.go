package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/tracker/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// driverName はmodernc.org/sqliteが登録するドライバ名。
const driverName = "sqlite"

// DSN はSQLiteファイルへの接続文字列を組み立てる。
// 全コネクションで外部キー制約とWALを有効にし、書き込みトランザクションは即時ロックを取る。
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	prefix := "file:"
	if strings.HasPrefix(path, "file:") {
		prefix = ""
	}
	return prefix + path + "?" + q.Encode()
}

// Open はSQLiteデータベースを開き、疎通を確認する。
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	return db, nil
}

// Migrate は埋め込みのマイグレーションを適用する。
func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (int, error) {
	n, err := migration.Run(ctx, db.DB, migrationsFS, "migrations", logger)
	if err != nil {
		return n, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return n, nil
}

// MigrationStatus は埋め込みのマイグレーションの適用状況を返す。
func MigrationStatus(ctx context.Context, db *sqlx.DB) ([]migration.Entry, error) {
	return migration.Status(ctx, db.DB, migrationsFS, "migrations")
}
