package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Comment は作業項目に付くコメント。
type Comment struct {
	// ID はコメントの一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// WorkItemID はコメントが属する作業項目のID。
	WorkItemID string `db:"work_item_id" json:"workItemId"`
	// AuthorID は投稿者のユーザーID。
	AuthorID string `db:"author_id" json:"authorId"`
	// Body はトリム済みの本文。
	Body string `db:"body" json:"body"`
	// MentionedUserIDs は本文中のメンションから解決されたユーザーID。
	MentionedUserIDs IDList `db:"mentioned_user_ids" json:"mentionedUserIds"`
	// CreatedAt は投稿日時。
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IDList は順序付きのID集合。DBにはJSON配列として保存する。
type IDList []string

// Value はdriver.Valuerの実装。
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("IDリストのシリアライズに失敗: %w", err)
	}
	return string(b), nil
}

// Scan はsql.Scannerの実装。
func (l *IDList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = IDList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("IDリストに変換できない型です: %T", src)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("IDリストのデシリアライズに失敗: %w", err)
	}
	*l = IDList(ids)
	return nil
}
