package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tracker/internal/domain"
)

const workItemColumns = `id, project_id, parent_id, kind, title, description, attachment_url,
	is_completed, assignee_id, created_at, completed_at`

// CreateWorkItem は作業項目を作成する。
func (q *Queries) CreateWorkItem(ctx context.Context, w domain.WorkItem) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO work_items (id, project_id, parent_id, kind, title, description, attachment_url,
			is_completed, assignee_id, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.ProjectID, w.ParentID, w.Kind, w.Title, w.Description, w.AttachmentURL,
		w.IsCompleted, w.AssigneeID, w.CreatedAt, w.CompletedAt)
	if err != nil {
		return fmt.Errorf("作業項目の作成に失敗: %w", err)
	}
	return nil
}

// GetWorkItem はIDで作業項目を取得する。
func (q *Queries) GetWorkItem(ctx context.Context, id string) (domain.WorkItem, error) {
	var w domain.WorkItem
	if err := sqlxGet(ctx, q.db, &w, `SELECT `+workItemColumns+` FROM work_items WHERE id = ?`, id); err != nil {
		return domain.WorkItem{}, notFound(err, "作業項目")
	}
	return w, nil
}

// GetWorkItemTitle は作業項目の現在のタイトルを取得する。
func (q *Queries) GetWorkItemTitle(ctx context.Context, id string) (string, error) {
	var title string
	if err := sqlxGet(ctx, q.db, &title, `SELECT title FROM work_items WHERE id = ?`, id); err != nil {
		return "", notFound(err, "作業項目")
	}
	return title, nil
}

// ListWorkItemsParams はListWorkItemsの絞り込み条件。
type ListWorkItemsParams struct {
	// ProjectID は対象プロジェクトのID。
	ProjectID string
	// Kind は種類での絞り込み。空の場合は全種類。
	Kind domain.Kind
	// ParentID は親での絞り込み。nilの場合は絞り込まない。
	ParentID *string
	// OrphansOnly がtrueの場合は親のない項目のみ返す。
	OrphansOnly bool
}

// ListWorkItems は条件に合う作業項目を作成順に返す。
func (q *Queries) ListWorkItems(ctx context.Context, arg ListWorkItemsParams) ([]domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE project_id = ?`
	args := []any{arg.ProjectID}
	if arg.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, arg.Kind)
	}
	if arg.ParentID != nil {
		query += ` AND parent_id = ?`
		args = append(args, *arg.ParentID)
	}
	if arg.OrphansOnly {
		query += ` AND parent_id IS NULL`
	}
	query += ` ORDER BY created_at, rowid`

	items := []domain.WorkItem{}
	if err := sqlxSelect(ctx, q.db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("作業項目一覧の取得に失敗: %w", err)
	}
	return items, nil
}

// CountChildren は作業項目の直下の子の数を返す。
func (q *Queries) CountChildren(ctx context.Context, id string) (int, error) {
	var n int
	if err := sqlxGet(ctx, q.db, &n, `SELECT COUNT(*) FROM work_items WHERE parent_id = ?`, id); err != nil {
		return 0, fmt.Errorf("子の数の取得に失敗: %w", err)
	}
	return n, nil
}

// CompleteWorkItem は未完了の作業項目を完了状態にし、更新した行数を返す。
func (q *Queries) CompleteWorkItem(ctx context.Context, id string, completedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE work_items SET is_completed = 1, completed_at = ? WHERE id = ? AND is_completed = 0`,
		completedAt, id)
	if err != nil {
		return 0, fmt.Errorf("作業項目の完了処理に失敗: %w", err)
	}
	return res.RowsAffected()
}

// DeleteWorkItem は作業項目を1行だけ削除する。
func (q *Queries) DeleteWorkItem(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("作業項目の削除に失敗: %w", err)
	}
	return nil
}

// TaskMetrics はプロジェクトのTaskを集計する。
func (q *Queries) TaskMetrics(ctx context.Context, projectID string) (domain.TaskMetrics, error) {
	var totals struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}
	if err := sqlxGet(ctx, q.db, &totals,
		`SELECT COUNT(*) AS total, COALESCE(SUM(is_completed), 0) AS completed
		FROM work_items WHERE project_id = ? AND kind = ?`,
		projectID, domain.KindTask); err != nil {
		return domain.TaskMetrics{}, fmt.Errorf("Taskの集計に失敗: %w", err)
	}

	var perUser []struct {
		AssigneeID string `db:"assignee_id"`
		Count      int    `db:"n"`
	}
	if err := sqlxSelect(ctx, q.db, &perUser,
		`SELECT assignee_id, COUNT(*) AS n FROM work_items
		WHERE project_id = ? AND kind = ? AND assignee_id IS NOT NULL
		GROUP BY assignee_id`,
		projectID, domain.KindTask); err != nil {
		return domain.TaskMetrics{}, fmt.Errorf("担当者ごとのTaskの集計に失敗: %w", err)
	}

	m := domain.TaskMetrics{
		TasksTotal:     totals.Total,
		TasksCompleted: totals.Completed,
		TasksPerUser:   make(map[string]int, len(perUser)),
	}
	for _, row := range perUser {
		m.TasksPerUser[row.AssigneeID] = row.Count
	}
	return m, nil
}
