package domain

import (
	"fmt"
	"time"
)

// Kind は作業項目の種類を表す判別子。
type Kind string

const (
	// KindEpic は最上位の作業項目。親を持たない。
	KindEpic Kind = "epic"
	// KindUserStory はEpicの下に置かれる作業項目。
	KindUserStory Kind = "user_story"
	// KindTask はUserStoryの下に置かれる作業項目。
	KindTask Kind = "task"
)

// ParseKind は文字列をKindに変換する。
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindEpic, KindUserStory, KindTask:
		return k, nil
	default:
		return "", NewValidationError("kind", fmt.Sprintf("未知の種類です: %q", s))
	}
}

// ParentKind はkの親として許される種類を返す。
// 親を持てない種類の場合はfalseを返す。
func (k Kind) ParentKind() (Kind, bool) {
	switch k {
	case KindUserStory:
		return KindEpic, true
	case KindTask:
		return KindUserStory, true
	default:
		return "", false
	}
}

// WorkItem はEpic / UserStory / Taskを1つの型で表す作業項目。
// 振る舞いはKindで切り替える。子は保持せず、parent_idの索引で都度引く。
type WorkItem struct {
	// ID は作業項目の一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// ProjectID は所属するプロジェクトのID。
	ProjectID string `db:"project_id" json:"projectId"`
	// ParentID は親の作業項目ID。親がない場合はnil。
	ParentID *string `db:"parent_id" json:"parentId"`
	// Kind は作業項目の種類。
	Kind Kind `db:"kind" json:"type"`
	// Title はタイトル。
	Title string `db:"title" json:"title"`
	// Description は説明。
	Description *string `db:"description" json:"description"`
	// AttachmentURL は添付ファイルのURL。
	AttachmentURL *string `db:"attachment_url" json:"attachmentUrl"`
	// IsCompleted は完了済みかどうか。
	IsCompleted bool `db:"is_completed" json:"isCompleted"`
	// AssigneeID は担当者のユーザーID。
	AssigneeID *string `db:"assignee_id" json:"assigneeId"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	// CompletedAt は完了日時。未完了の場合はnil。
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
}

// ValidateParent は親候補parentがwの親として妥当かを検証する。
// parentがnilの場合は親なしとして常に妥当。
func (w *WorkItem) ValidateParent(parent *WorkItem) error {
	if parent == nil {
		return nil
	}
	want, ok := w.Kind.ParentKind()
	if !ok {
		return NewValidationError("parentId", fmt.Sprintf("%sは親を持てません", w.Kind))
	}
	if parent.ProjectID != w.ProjectID {
		return NewValidationError("parentId", "親は同じプロジェクトに属している必要があります")
	}
	if parent.Kind != want {
		return NewValidationError("parentId", fmt.Sprintf("%sの親は%sである必要があります", w.Kind, want))
	}
	return nil
}

// Complete は作業項目を完了状態にする。
// 既に完了している場合は何もせずfalseを返す。
func (w *WorkItem) Complete(now time.Time) bool {
	if w.IsCompleted {
		return false
	}
	w.IsCompleted = true
	w.CompletedAt = &now
	return true
}

// TaskMetrics はプロジェクトのTaskの集計。
type TaskMetrics struct {
	// TasksTotal はTaskの総数。
	TasksTotal int `json:"tasksTotal"`
	// TasksCompleted は完了済みのTaskの数。
	TasksCompleted int `json:"tasksCompleted"`
	// TasksPerUser は担当者ごとのTaskの数。担当者のいないTaskは含まない。
	TasksPerUser map[string]int `json:"tasksPerUser"`
}
