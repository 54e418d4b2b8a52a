package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// sqlxGet は1行をdestに読み込む。行がない場合はsql.ErrNoRowsを返す。
func sqlxGet(ctx context.Context, db DBTX, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, db, dest, query, args...)
}

// sqlxSelect は全行をdestのスライスに読み込む。
func sqlxSelect(ctx context.Context, db DBTX, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, db, dest, query, args...)
}
