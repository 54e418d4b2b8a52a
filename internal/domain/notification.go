package domain

import "time"

// MentionNotification はコメント中のメンションで生成される通知。
// 生成時点のタイトルや表示名を複製して持ち、既読状態以外は変更しない。
type MentionNotification struct {
	// ID は通知の一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// UserID は通知先のユーザーID。
	UserID string `db:"user_id" json:"-"`
	// CommentID はメンションを含むコメントのID。
	CommentID string `db:"comment_id" json:"commentId"`
	// WorkItemID はコメントが属する作業項目のID。
	WorkItemID string `db:"work_item_id" json:"workItemId"`
	// MentionedByUserID はメンションしたユーザーのID。
	MentionedByUserID string `db:"mentioned_by_user_id" json:"-"`
	// CommentBody はコメント本文のプレビュー。
	CommentBody string `db:"comment_body" json:"commentBody"`
	// WorkItemTitle は生成時点の作業項目タイトル。
	WorkItemTitle string `db:"work_item_title" json:"workItemTitle"`
	// MentionedByName は生成時点のメンションしたユーザーの表示名。
	MentionedByName string `db:"mentioned_by_name" json:"mentionedByName"`
	// IsRead は既読かどうか。
	IsRead bool `db:"is_read" json:"isRead"`
	// CreatedAt は生成日時。
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
