package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/realtime"
	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/pkg/event"
)

const (
	// MaxListed は一覧で返す通知の最大件数。
	MaxListed = 50
	// PreviewLength はコメント本文のプレビューの最大文字数。
	PreviewLength = 100
	// DefaultPushTimeout は1回の配信にかける時間の既定値。
	DefaultPushTimeout = 5 * time.Second

	unknownTitle  = "Unknown"
	unknownAuthor = "Someone"
)

// Pusher はユーザーの全接続にイベントを届ける。
type Pusher interface {
	NotifyUser(userID string, ev *event.Event) (int, error)
}

// Dispatcher はメンション通知の保存と配信を行う。
type Dispatcher struct {
	queries     *store.Queries
	pusher      Pusher
	logger      *slog.Logger
	pushTimeout time.Duration

	// mu はqueue・running・idleを守る。
	mu      sync.Mutex
	queue   []batch
	running bool
	// idle は配信ゴルーチンが止まっている間は閉じている。
	idle chan struct{}
}

// batch は1回のPublishで渡された通知。
type batch struct {
	ctx           context.Context
	notifications []domain.MentionNotification
}

// NewDispatcher は新しいDispatcherを生成する。
// pusherがnilの場合は配信を行わず、保存だけを行う。
func NewDispatcher(queries *store.Queries, pusher Pusher, logger *slog.Logger, pushTimeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		queries:     queries,
		pusher:      pusher,
		logger:      logger,
		pushTimeout: pushTimeout,
		idle:        idle,
	}
}

// Preview はコメント本文を通知用に切り詰める。
// PreviewLength文字を超える場合は先頭PreviewLength文字に "..." を付ける。
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= PreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:PreviewLength]) + "..."
}

// Record はrecipientsのそれぞれに通知を作成し、作成した通知を返す。
// qは呼び出し元のトランザクションに束縛されている必要がある。
// 投稿者自身と重複した受信者には作成しない。
func (d *Dispatcher) Record(
	ctx context.Context,
	q *store.Queries,
	comment domain.Comment,
	recipients []string,
	workItemTitle, authorName string,
) ([]domain.MentionNotification, error) {
	if workItemTitle == "" {
		workItemTitle = unknownTitle
	}
	if authorName == "" {
		authorName = unknownAuthor
	}
	preview := Preview(comment.Body)

	created := make([]domain.MentionNotification, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == comment.AuthorID {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}

		n := domain.MentionNotification{
			ID:                uuid.NewString(),
			UserID:            userID,
			CommentID:         comment.ID,
			WorkItemID:        comment.WorkItemID,
			MentionedByUserID: comment.AuthorID,
			CommentBody:       preview,
			WorkItemTitle:     workItemTitle,
			MentionedByName:   authorName,
			CreatedAt:         comment.CreatedAt,
		}
		if err := q.CreateMentionNotification(ctx, n); err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}

// Publish は通知を受信者の接続へ配信する。コミット後に呼び出す。
// 呼び出し元はブロックしない。通知はFIFOのキューに積み、1本のゴルーチンが積んだ順に配信するため、
// 同じ受信者へのイベントはPublishした順に届く。
// 配信はリクエストのキャンセルから切り離し、失敗はWARNでログに残すだけにする。
func (d *Dispatcher) Publish(ctx context.Context, notifications []domain.MentionNotification) {
	if d.pusher == nil || len(notifications) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, batch{ctx: context.WithoutCancel(ctx), notifications: notifications})
	if d.running {
		return
	}
	d.running = true
	d.idle = make(chan struct{})
	go d.drain()
}

// drain はキューが空になるまで先頭から配信し、空になったら終了する。
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			close(d.idle)
			d.mu.Unlock()
			return
		}
		b := d.queue[0]
		d.queue[0] = batch{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.deliver(b)
	}
}

// deliver は1回分の通知をpushTimeoutの範囲で配信する。
func (d *Dispatcher) deliver(b batch) {
	pushCtx, cancel := context.WithTimeout(b.ctx, d.pushTimeout)
	defer cancel()

	for _, n := range b.notifications {
		if err := pushCtx.Err(); err != nil {
			d.logger.Warn("通知の配信を打ち切りました", "user_id", n.UserID, "notification_id", n.ID, "error", err)
			return
		}
		d.push(n)
	}
}

func (d *Dispatcher) push(n domain.MentionNotification) {
	ev, err := event.New(event.TypeNotification, event.NotificationData{
		Type:          event.NotificationKindMention,
		WorkItemID:    n.WorkItemID,
		WorkItemTitle: n.WorkItemTitle,
		MentionedBy:   n.MentionedByName,
	})
	if err != nil {
		d.logger.Warn("通知イベントの生成に失敗", "user_id", n.UserID, "error", err)
		return
	}

	delivered, err := d.pusher.NotifyUser(n.UserID, ev)
	switch {
	case errors.Is(err, realtime.ErrNoSubscribers):
		// 接続していないユーザーは一覧APIで通知を受け取る。
		d.logger.Debug("配信先の接続がありません", "user_id", n.UserID, "event", ev.Type)
	case err != nil:
		d.logger.Warn("通知の配信に失敗", "user_id", n.UserID, "event", ev.Type, "delivered", delivered, "error", err)
	}
}

// Wait はキューに積まれた通知がすべて配信されるまで待つ。ctxが終わった場合はそのエラーを返す。
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListForUser はユーザーの通知を新しい順にMaxListed件まで返す。
func (d *Dispatcher) ListForUser(ctx context.Context, userID string) ([]domain.MentionNotification, error) {
	return d.queries.ListMentionNotifications(ctx, userID, MaxListed)
}

// UnreadCount はユーザーの未読通知の件数を返す。
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	return d.queries.CountUnreadMentionNotifications(ctx, userID)
}

// MarkRead はユーザー本人の通知を既読にする。既読の通知に対しては何もしない。
// 通知が存在しない、または他のユーザーの通知である場合はdomain.ErrNotFoundを返す。
func (d *Dispatcher) MarkRead(ctx context.Context, userID, notificationID string) error {
	n, err := d.queries.MarkMentionNotificationRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("通知 %s: %w", notificationID, domain.ErrNotFound)
	}
	return nil
}

// MarkAllRead はユーザーの未読通知をすべて既読にし、既読にした件数を返す。
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return d.queries.MarkAllMentionNotificationsRead(ctx, userID)
}
