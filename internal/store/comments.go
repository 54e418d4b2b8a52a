package store

import (
	"context"
	"fmt"

	"github.com/nao1215/tracker/internal/domain"
)

const commentColumns = `id, work_item_id, author_id, body, mentioned_user_ids, created_at`

// CreateComment はコメントを作成する。
func (q *Queries) CreateComment(ctx context.Context, c domain.Comment) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO comments (id, work_item_id, author_id, body, mentioned_user_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkItemID, c.AuthorID, c.Body, c.MentionedUserIDs, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗: %w", err)
	}
	return nil
}

// GetComment は作業項目に属するコメントを取得する。
func (q *Queries) GetComment(ctx context.Context, workItemID, id string) (domain.Comment, error) {
	var c domain.Comment
	err := sqlxGet(ctx, q.db, &c,
		`SELECT `+commentColumns+` FROM comments WHERE id = ? AND work_item_id = ?`, id, workItemID)
	if err != nil {
		return domain.Comment{}, notFound(err, "コメント")
	}
	return c, nil
}

// ListComments は作業項目のコメントを古い順に返す。
func (q *Queries) ListComments(ctx context.Context, workItemID string) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	err := sqlxSelect(ctx, q.db, &comments,
		`SELECT `+commentColumns+` FROM comments WHERE work_item_id = ? ORDER BY created_at, rowid`, workItemID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗: %w", err)
	}
	return comments, nil
}

// DeleteComment はコメントを削除する。通知は残す。
func (q *Queries) DeleteComment(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("コメントの削除に失敗: %w", err)
	}
	return nil
}
