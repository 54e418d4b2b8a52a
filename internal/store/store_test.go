package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/internal/testutil"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	dsn := store.DSN("/tmp/x.db")
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys%281%29")
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	db := testutil.NewDB(t)
	n, err := store.Migrate(t.Context(), db, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkItemQueries(t *testing.T) {
	t.Parallel()

	db := testutil.NewDB(t)
	q := store.New(db)
	p := testutil.CreateProject(t, db, "proj")
	epic := testutil.CreateWorkItem(t, db, p.ID, domain.KindEpic, "epic", nil)
	story := testutil.CreateWorkItem(t, db, p.ID, domain.KindUserStory, "story", &epic.ID)

	t.Run("作業項目を読み戻せる", func(t *testing.T) {
		got, err := q.GetWorkItem(t.Context(), story.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.KindUserStory, got.Kind)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, epic.ID, *got.ParentID)
		assert.False(t, got.IsCompleted)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("存在しないIDはErrNotFound", func(t *testing.T) {
		_, err := q.GetWorkItemTitle(t.Context(), uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("子の数と親での絞り込み", func(t *testing.T) {
		n, err := q.CountChildren(t.Context(), epic.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		items, err := q.ListWorkItems(t.Context(), store.ListWorkItemsParams{ProjectID: p.ID, ParentID: &epic.ID})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, story.ID, items[0].ID)

		orphans, err := q.ListWorkItems(t.Context(), store.ListWorkItemsParams{ProjectID: p.ID, OrphansOnly: true})
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, epic.ID, orphans[0].ID)
	})

	t.Run("子を持つ行は外部キー制約で削除できない", func(t *testing.T) {
		assert.Error(t, q.DeleteWorkItem(t.Context(), epic.ID))
	})

	t.Run("完了は1回だけ反映される", func(t *testing.T) {
		now := time.Now().UTC()
		n, err := q.CompleteWorkItem(t.Context(), story.ID, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = q.CompleteWorkItem(t.Context(), story.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		got, err := q.GetWorkItem(t.Context(), story.ID)
		require.NoError(t, err)
		assert.True(t, got.IsCompleted)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, now, *got.CompletedAt, time.Millisecond)
	})
}

func TestMentionNotificationQueries(t *testing.T) {
	t.Parallel()

	db := testutil.NewDB(t)
	q := store.New(db)
	base := time.Now().UTC()

	newNotification := func(userID, commentID string, at time.Time) domain.MentionNotification {
		return domain.MentionNotification{
			ID:                uuid.NewString(),
			UserID:            userID,
			CommentID:         commentID,
			WorkItemID:        "w1",
			MentionedByUserID: "author",
			CommentBody:       "body",
			WorkItemTitle:     "title",
			MentionedByName:   "Author",
			CreatedAt:         at,
		}
	}

	older := newNotification("u1", "c1", base)
	newer := newNotification("u1", "c2", base.Add(time.Second))
	other := newNotification("u2", "c1", base)
	for _, n := range []domain.MentionNotification{older, newer, other} {
		require.NoError(t, q.CreateMentionNotification(t.Context(), n))
	}

	t.Run("同じ受信者とコメントの組は1件まで", func(t *testing.T) {
		assert.Error(t, q.CreateMentionNotification(t.Context(), newNotification("u1", "c1", base)))
	})

	t.Run("新しい順に本人の分だけ返す", func(t *testing.T) {
		got, err := q.ListMentionNotifications(t.Context(), "u1", 50)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ID, got[0].ID)
		assert.Equal(t, older.ID, got[1].ID)
	})

	t.Run("他人の通知は既読にできない", func(t *testing.T) {
		n, err := q.MarkMentionNotificationRead(t.Context(), other.ID, "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})

	t.Run("全既読は未読の分だけ変更する", func(t *testing.T) {
		n, err := q.MarkAllMentionNotificationsRead(t.Context(), "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = q.MarkAllMentionNotificationsRead(t.Context(), "u1")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		unread, err := q.CountUnreadMentionNotifications(t.Context(), "u1")
		require.NoError(t, err)
		assert.Zero(t, unread)

		unread, err = q.CountUnreadMentionNotifications(t.Context(), "u2")
		require.NoError(t, err)
		assert.Equal(t, 1, unread)
	})
}

func TestUnitOfWorkRollsBack(t *testing.T) {
	t.Parallel()

	db := testutil.NewDB(t)
	uow := store.NewUnitOfWork(db)
	p := testutil.CreateProject(t, db, "proj")

	err := uow.WithinTx(t.Context(), func(ctx context.Context, q *store.Queries) error {
		if err := q.CreateWorkItem(ctx, domain.WorkItem{
			ID: "w1", ProjectID: p.ID, Kind: domain.KindEpic, Title: "t", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return domain.ErrConflict
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = store.New(db).GetWorkItem(t.Context(), "w1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
