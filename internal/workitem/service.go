package workitem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/realtime"
	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/pkg/event"
)

// Broadcaster はプロジェクトのグループにイベントを配信する。
type Broadcaster interface {
	BroadcastToProjectGroup(projectID string, ev *event.Event) (int, error)
}

// CreateParams は作業項目の作成パラメータ。
type CreateParams struct {
	// Title はタイトル。前後の空白は取り除く。
	Title string
	// Description は説明。
	Description *string
	// AttachmentURL は添付ファイルのURL。
	AttachmentURL *string
	// AssigneeID は担当者のユーザーID。
	AssigneeID *string
}

// Service は作業項目の階層を管理する。
type Service struct {
	queries     *store.Queries
	uow         store.UnitOfWork
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewService は新しいServiceを生成する。broadcasterがnilの場合は配信しない。
func NewService(queries *store.Queries, uow store.UnitOfWork, broadcaster Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		queries:     queries,
		uow:         uow,
		broadcaster: broadcaster,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateEpic はEpicを作成する。
func (s *Service) CreateEpic(ctx context.Context, projectID string, p CreateParams) (domain.WorkItem, error) {
	return s.create(ctx, projectID, domain.KindEpic, nil, p)
}

// CreateUserStory はUserStoryを作成する。parentIDを指定する場合は同じプロジェクトのEpicでなければならない。
func (s *Service) CreateUserStory(ctx context.Context, projectID string, parentID *string, p CreateParams) (domain.WorkItem, error) {
	return s.create(ctx, projectID, domain.KindUserStory, parentID, p)
}

// CreateTask はTaskを作成する。parentIDを指定する場合は同じプロジェクトのUserStoryでなければならない。
func (s *Service) CreateTask(ctx context.Context, projectID string, parentID *string, p CreateParams) (domain.WorkItem, error) {
	return s.create(ctx, projectID, domain.KindTask, parentID, p)
}

// CreateTaskForStory はUserStoryの下にTaskを作成する。
// UserStoryがプロジェクト内に存在しない場合はdomain.ErrNotFoundを返す。
func (s *Service) CreateTaskForStory(ctx context.Context, projectID, storyID string, p CreateParams) (domain.WorkItem, error) {
	if _, err := s.Get(ctx, projectID, storyID); err != nil {
		return domain.WorkItem{}, err
	}
	return s.create(ctx, projectID, domain.KindTask, &storyID, p)
}

func (s *Service) create(ctx context.Context, projectID string, kind domain.Kind, parentID *string, p CreateParams) (domain.WorkItem, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return domain.WorkItem{}, domain.NewValidationError("title", "タイトルは必須です")
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	w := domain.WorkItem{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		ParentID:      parentID,
		Kind:          kind,
		Title:         title,
		Description:   p.Description,
		AttachmentURL: p.AttachmentURL,
		AssigneeID:    p.AssigneeID,
		CreatedAt:     s.now(),
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context, q *store.Queries) error {
		if _, err := q.GetProject(ctx, projectID); err != nil {
			return err
		}
		var parent *domain.WorkItem
		if parentID != nil {
			got, err := q.GetWorkItem(ctx, *parentID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("parentId", "親の作業項目が存在しません")
			}
			if err != nil {
				return err
			}
			parent = &got
		}
		if err := w.ValidateParent(parent); err != nil {
			return err
		}
		return q.CreateWorkItem(ctx, w)
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	s.logger.Info("作業項目を作成しました", "work_item_id", w.ID, "project_id", projectID, "kind", kind)
	return w, nil
}

// Get はプロジェクト内の作業項目を取得する。別のプロジェクトの作業項目はdomain.ErrNotFoundになる。
func (s *Service) Get(ctx context.Context, projectID, id string) (domain.WorkItem, error) {
	return get(ctx, s.queries, projectID, id)
}

func get(ctx context.Context, q *store.Queries, projectID, id string) (domain.WorkItem, error) {
	w, err := q.GetWorkItem(ctx, id)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if w.ProjectID != projectID {
		return domain.WorkItem{}, fmt.Errorf("作業項目 %s: %w", id, domain.ErrNotFound)
	}
	return w, nil
}

// GetTitle は作業項目の現在のタイトルを返す。
func (s *Service) GetTitle(ctx context.Context, id string) (string, error) {
	return s.queries.GetWorkItemTitle(ctx, id)
}

// List はプロジェクトの作業項目を作成順に返す。kindが空の場合は全種類を返す。
func (s *Service) List(ctx context.Context, projectID string, kind domain.Kind) ([]domain.WorkItem, error) {
	if _, err := s.queries.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.queries.ListWorkItems(ctx, store.ListWorkItemsParams{ProjectID: projectID, Kind: kind})
}

// Children は作業項目の直下の子を返す。
func (s *Service) Children(ctx context.Context, projectID, id string) ([]domain.WorkItem, error) {
	if _, err := s.Get(ctx, projectID, id); err != nil {
		return nil, err
	}
	return s.queries.ListWorkItems(ctx, store.ListWorkItemsParams{ProjectID: projectID, ParentID: &id})
}

// ListTasks はプロジェクトのTaskを返す。orphansOnlyがtrueの場合はUserStoryに属さないTaskだけを返す。
func (s *Service) ListTasks(ctx context.Context, projectID string, orphansOnly bool) ([]domain.WorkItem, error) {
	if _, err := s.queries.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.queries.ListWorkItems(ctx, store.ListWorkItemsParams{
		ProjectID:   projectID,
		Kind:        domain.KindTask,
		OrphansOnly: orphansOnly,
	})
}

// Metrics はプロジェクトのTaskの総数、完了数、担当者ごとの数を返す。
func (s *Service) Metrics(ctx context.Context, projectID string) (domain.TaskMetrics, error) {
	if _, err := s.queries.GetProject(ctx, projectID); err != nil {
		return domain.TaskMetrics{}, err
	}
	return s.queries.TaskMetrics(ctx, projectID)
}

// Complete は作業項目を完了状態にする。完了済みの場合は何もしない。
// 状態が変わった場合はコミット後にTaskUpdatedをプロジェクトのグループへ配信する。
func (s *Service) Complete(ctx context.Context, projectID, id string) (domain.WorkItem, error) {
	var w domain.WorkItem
	changed := false
	err := s.uow.WithinTx(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		w, err = get(ctx, q, projectID, id)
		if err != nil {
			return err
		}
		if !w.Complete(s.now()) {
			return nil
		}
		n, err := q.CompleteWorkItem(ctx, id, *w.CompletedAt)
		if err != nil {
			return err
		}
		if n == 0 {
			// 並行して完了された
			w, err = q.GetWorkItem(ctx, id)
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	if changed {
		s.logger.Info("作業項目を完了しました", "work_item_id", id, "project_id", projectID)
		s.broadcastUpdated(w)
	}
	return w, nil
}

// broadcastUpdated はTaskUpdatedを配信する。配信の失敗はログに残すだけにする。
func (s *Service) broadcastUpdated(w domain.WorkItem) {
	if s.broadcaster == nil {
		return
	}
	ev, err := event.New(event.TypeTaskUpdated, event.TaskUpdatedData{
		ProjectID:   w.ProjectID,
		WorkItemID:  w.ID,
		IsCompleted: w.IsCompleted,
		CompletedAt: w.CompletedAt,
	})
	if err != nil {
		s.logger.Warn("TaskUpdatedイベントの生成に失敗", "work_item_id", w.ID, "error", err)
		return
	}
	n, err := s.broadcaster.BroadcastToProjectGroup(w.ProjectID, ev)
	switch {
	case errors.Is(err, realtime.ErrNoSubscribers):
		// 誰も購読していない
	case err != nil:
		s.logger.Warn("TaskUpdatedの配信に失敗", "project_id", w.ProjectID, "delivered", n, "error", err)
	}
}

// Delete は作業項目を削除する。子を持つ場合はdomain.ErrConflictを返し、何も削除しない。
func (s *Service) Delete(ctx context.Context, projectID, id string) error {
	err := s.uow.WithinTx(ctx, func(ctx context.Context, q *store.Queries) error {
		if _, err := get(ctx, q, projectID, id); err != nil {
			return err
		}
		n, err := q.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("作業項目 %s には%d件の子があります: %w", id, n, domain.ErrConflict)
		}
		return q.DeleteWorkItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("作業項目を削除しました", "work_item_id", id, "project_id", projectID)
	return nil
}
