package store

import (
	"context"
	"fmt"

	"github.com/nao1215/tracker/internal/domain"
)

const projectColumns = `id, name, description, owner_id, created_at`

// CreateProject はプロジェクトを作成する。
func (q *Queries) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, owner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.OwnerID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("プロジェクトの作成に失敗: %w", err)
	}
	return nil
}

// GetProject はIDでプロジェクトを取得する。
func (q *Queries) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	if err := sqlxGet(ctx, q.db, &p, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id); err != nil {
		return domain.Project{}, notFound(err, "プロジェクト")
	}
	return p, nil
}

// ListProjects はプロジェクトを作成日時の新しい順に返す。
func (q *Queries) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects := []domain.Project{}
	if err := sqlxSelect(ctx, q.db, &projects, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗: %w", err)
	}
	return projects, nil
}
