package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/nao1215/tracker/internal/store"
)

// FailOnNthExecUoW はトランザクション内のN回目のExecContextでエラーを返すUnitOfWork。
// 複数行の書き込みが途中で失敗したときにロールバックされることを検証するために使う。
// 読み込み系の呼び出しは数えない。
type FailOnNthExecUoW struct {
	DB     *sqlx.DB
	FailOn int32
	Err    error
}

// WithinTx はstore.UnitOfWorkの実装。
func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, q *store.Queries) error) error {
	tx, err := u.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}

	wrapped := &failOnNthExec{ExtContext: tx, failOn: u.FailOn, err: u.Err}
	if fnErr := fn(ctx, store.New(wrapped)); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failOnNthExec struct {
	sqlx.ExtContext
	count  atomic.Int32
	failOn int32
	err    error
}

func (f *failOnNthExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.count.Add(1) == f.failOn {
		return nil, f.err
	}
	return f.ExtContext.ExecContext(ctx, query, args...)
}
