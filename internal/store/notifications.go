package store

import (
	"context"
	"fmt"

	"github.com/nao1215/tracker/internal/domain"
)

const notificationColumns = `id, user_id, comment_id, work_item_id, mentioned_by_user_id, comment_body,
	work_item_title, mentioned_by_name, is_read, created_at`

// CreateMentionNotification はメンション通知を作成する。
func (q *Queries) CreateMentionNotification(ctx context.Context, n domain.MentionNotification) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO mention_notifications (id, user_id, comment_id, work_item_id, mentioned_by_user_id,
			comment_body, work_item_title, mentioned_by_name, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.CommentID, n.WorkItemID, n.MentionedByUserID,
		n.CommentBody, n.WorkItemTitle, n.MentionedByName, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("メンション通知の作成に失敗: %w", err)
	}
	return nil
}

// ListMentionNotifications はユーザーの通知を新しい順にlimit件まで返す。
func (q *Queries) ListMentionNotifications(ctx context.Context, userID string, limit int) ([]domain.MentionNotification, error) {
	notifications := []domain.MentionNotification{}
	err := sqlxSelect(ctx, q.db, &notifications,
		`SELECT `+notificationColumns+` FROM mention_notifications
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return notifications, nil
}

// CountUnreadMentionNotifications はユーザーの未読通知の件数を返す。
func (q *Queries) CountUnreadMentionNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := sqlxGet(ctx, q.db, &n,
		`SELECT COUNT(*) FROM mention_notifications WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return n, nil
}

// MarkMentionNotificationRead はユーザー本人の通知を既読にし、該当した行数を返す。
// 既に既読の通知も該当として数える。
func (q *Queries) MarkMentionNotificationRead(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE mention_notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	return res.RowsAffected()
}

// MarkAllMentionNotificationsRead はユーザーの未読通知をすべて既読にし、変更した行数を返す。
func (q *Queries) MarkAllMentionNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE mention_notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	return res.RowsAffected()
}
