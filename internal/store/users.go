package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/tracker/internal/domain"
)

const userColumns = `id, email, display_name, role, created_at`

// CreateUser はユーザーを登録する。
func (q *Queries) CreateUser(ctx context.Context, u domain.User) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return nil
}

// GetUserByID はIDでユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := sqlxGet(ctx, q.db, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return domain.User{}, notFound(err, "ユーザー")
	}
	return u, nil
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := sqlxGet(ctx, q.db, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		return domain.User{}, notFound(err, "ユーザー")
	}
	return u, nil
}

// ListUsers はユーザーディレクトリ全体のスナップショットを返す。
func (q *Queries) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := sqlxSelect(ctx, q.db, &users, `SELECT `+userColumns+` FROM users ORDER BY display_name, id`); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	return users, nil
}

// notFound はsql.ErrNoRowsをdomain.ErrNotFoundに変換する。
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%sが見つかりません: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("%sの取得に失敗: %w", what, err)
}
