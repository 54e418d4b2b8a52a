// Package event はリアルタイム配信で使うイベントの型を提供する。
package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。SSEのevent名としてそのまま使う。
type Type string

const (
	// TypeConnected は接続が確立し、接続IDが払い出されたことを表す。
	TypeConnected Type = "connected"
	// TypePing は接続維持のためのハートビート。
	TypePing Type = "ping"
	// TypeTaskUpdated は作業項目の完了状態が変わったことを表す。プロジェクトのグループに配信する。
	TypeTaskUpdated Type = "TaskUpdated"
	// TypeNotification はユーザー宛ての通知。そのユーザーの全接続に配信する。
	TypeNotification Type = "Notification"
)

// NotificationKindMention はメンション通知の種別。
const NotificationKindMention = "mention"

// Event はリアルタイム配信されるイベントの封筒。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Type はイベントの種類。
	Type Type `json:"type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"createdAt"`
}

// ConnectedData はconnectedイベントのデータ。
type ConnectedData struct {
	// ConnectionID はサーバーが払い出した接続ID。グループ参加に使う。
	ConnectionID string `json:"connectionId"`
}

// TaskUpdatedData はTaskUpdatedイベントのデータ。
type TaskUpdatedData struct {
	// ProjectID は作業項目が属するプロジェクトのID。
	ProjectID string `json:"projectId"`
	// WorkItemID は更新された作業項目のID。
	WorkItemID string `json:"workItemId"`
	// IsCompleted は完了済みかどうか。
	IsCompleted bool `json:"isCompleted"`
	// CompletedAt は完了日時。
	CompletedAt *time.Time `json:"completedAt"`
}

// NotificationData はNotificationイベントのデータ。
type NotificationData struct {
	// Type は通知の種別。メンションの場合は "mention"。
	Type string `json:"type"`
	// WorkItemID はメンションを含むコメントの作業項目ID。
	WorkItemID string `json:"workItemId"`
	// WorkItemTitle は作業項目のタイトル。
	WorkItemTitle string `json:"workItemTitle"`
	// MentionedBy はメンションしたユーザーの表示名。
	MentionedBy string `json:"mentionedBy"`
}
