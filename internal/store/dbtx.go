package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DBTX は*sqlx.DBと*sqlx.Txの共通インターフェース。
type DBTX interface {
	sqlx.ExtContext
}

// Queries はテーブルごとのクエリをまとめた実行オブジェクト。
type Queries struct {
	db DBTX
}

// New は新しいQueriesを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// UnitOfWork はトランザクション境界を管理する。
// fnに渡るQueriesはトランザクションに束縛されている。
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error
}

// SQLiteUnitOfWork はsqlxのトランザクションによるUnitOfWorkの実装。
type SQLiteUnitOfWork struct {
	db *sqlx.DB
}

// NewUnitOfWork は新しいSQLiteUnitOfWorkを生成する。
func NewUnitOfWork(db *sqlx.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db}
}

// WithinTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返すかパニックした場合はロールバックする。
func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("ロールバックに失敗: %v (元のエラー: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}
