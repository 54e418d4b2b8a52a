package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/mention"
	"github.com/nao1215/tracker/internal/notification"
	"github.com/nao1215/tracker/internal/store"
)

// Service はコメントの書き込み経路。
type Service struct {
	queries    *store.Queries
	uow        store.UnitOfWork
	resolver   *mention.Resolver
	dispatcher *notification.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(
	queries *store.Queries,
	uow store.UnitOfWork,
	resolver *mention.Resolver,
	dispatcher *notification.Dispatcher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		queries:    queries,
		uow:        uow,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create はコメントを投稿する。
//
// 本文は前後の空白を取り除いて保存し、空の場合はValidationErrorを返す。
// 作業項目が存在しない場合はdomain.ErrNotFoundを返す。
// コメントと通知は同じトランザクションで保存し、どちらかが失敗すれば両方とも残らない。
// 通知の配信はコミット後に行い、その成否は結果に影響しない。
func (s *Service) Create(ctx context.Context, authorID, workItemID, body string) (domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Comment{}, domain.NewValidationError("body", "コメント本文は必須です")
	}

	recipients, err := s.resolver.Resolve(ctx, mention.Collect(body), nil)
	if err != nil {
		return domain.Comment{}, err
	}
	if recipients == nil {
		recipients = []string{}
	}

	c := domain.Comment{
		ID:               uuid.NewString(),
		WorkItemID:       workItemID,
		AuthorID:         authorID,
		Body:             body,
		MentionedUserIDs: domain.IDList(recipients),
		CreatedAt:        s.now(),
	}

	var created []domain.MentionNotification
	err = s.uow.WithinTx(ctx, func(ctx context.Context, q *store.Queries) error {
		title, err := q.GetWorkItemTitle(ctx, workItemID)
		if err != nil {
			return err
		}
		if err := q.CreateComment(ctx, c); err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}
		authorName, err := displayName(ctx, q, authorID)
		if err != nil {
			return err
		}
		created, err = s.dispatcher.Record(ctx, q, c, recipients, title, authorName)
		return err
	})
	if err != nil {
		return domain.Comment{}, err
	}

	s.dispatcher.Publish(ctx, created)
	s.logger.Info("コメントを投稿しました",
		"comment_id", c.ID, "work_item_id", workItemID, "author_id", authorID,
		"mentions", len(recipients), "notifications", len(created))
	return c, nil
}

// displayName は投稿者の表示名を返す。ディレクトリにいない場合は空文字列を返す。
func displayName(ctx context.Context, q *store.Queries, userID string) (string, error) {
	u, err := q.GetUserByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.DisplayName, nil
}

// List は作業項目のコメントを古い順に返す。
func (s *Service) List(ctx context.Context, workItemID string) ([]domain.Comment, error) {
	if _, err := s.queries.GetWorkItemTitle(ctx, workItemID); err != nil {
		return nil, err
	}
	return s.queries.ListComments(ctx, workItemID)
}

// Delete はコメントを削除する。投稿者本人か管理者だけが削除できる。
// コメントから生成された通知は削除しない。
func (s *Service) Delete(ctx context.Context, workItemID, commentID, callerID string, callerRole domain.Role) error {
	c, err := s.queries.GetComment(ctx, workItemID, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != callerID && callerRole != domain.RoleAdmin {
		return fmt.Errorf("コメント %s: %w", commentID, domain.ErrForbidden)
	}
	return s.queries.DeleteComment(ctx, commentID)
}
