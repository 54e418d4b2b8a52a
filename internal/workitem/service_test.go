package workitem_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/realtime"
	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/internal/testutil"
	"github.com/nao1215/tracker/internal/workitem"
	"github.com/nao1215/tracker/pkg/event"
)

func newService(t *testing.T) (*workitem.Service, *sqlx.DB, *realtime.Hub) {
	t.Helper()
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := realtime.NewHub(0, logger)
	return workitem.NewService(store.New(db), store.NewUnitOfWork(db), hub, logger), db, hub
}

func ptr(s string) *string { return &s }

func TestService_Create(t *testing.T) {
	t.Parallel()

	t.Run("Epic / UserStory / Taskの3階層を作成できること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		epic, err := svc.CreateEpic(t.Context(), p.ID, workitem.CreateParams{Title: "  Auth  ", Description: ptr("login")})
		require.NoError(t, err)
		assert.Equal(t, domain.KindEpic, epic.Kind)
		assert.Equal(t, "Auth", epic.Title)
		assert.Nil(t, epic.ParentID)

		story, err := svc.CreateUserStory(t.Context(), p.ID, &epic.ID, workitem.CreateParams{Title: "Sign in"})
		require.NoError(t, err)
		assert.Equal(t, epic.ID, *story.ParentID)

		task, err := svc.CreateTaskForStory(t.Context(), p.ID, story.ID, workitem.CreateParams{Title: "Form"})
		require.NoError(t, err)
		assert.Equal(t, domain.KindTask, task.Kind)
		assert.Equal(t, story.ID, *task.ParentID)

		got, err := svc.Get(t.Context(), p.ID, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Form", got.Title)
		assert.False(t, got.IsCompleted)
	})

	t.Run("親のないUserStoryとTaskを作成できること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		story, err := svc.CreateUserStory(t.Context(), p.ID, nil, workitem.CreateParams{Title: "standalone"})
		require.NoError(t, err)
		assert.Nil(t, story.ParentID)

		task, err := svc.CreateTask(t.Context(), p.ID, ptr(""), workitem.CreateParams{Title: "orphan"})
		require.NoError(t, err)
		assert.Nil(t, task.ParentID)
	})

	t.Run("1つ上の種類でない親はValidationErrorになること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")
		epic := testutil.CreateWorkItem(t, db, p.ID, domain.KindEpic, "E", nil)
		task := testutil.CreateWorkItem(t, db, p.ID, domain.KindTask, "T", nil)

		_, err := svc.CreateTask(t.Context(), p.ID, &epic.ID, workitem.CreateParams{Title: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.CreateUserStory(t.Context(), p.ID, &task.ID, workitem.CreateParams{Title: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("別のプロジェクトの親はValidationErrorになること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p1 := testutil.CreateProject(t, db, "P1")
		p2 := testutil.CreateProject(t, db, "P2")
		epic := testutil.CreateWorkItem(t, db, p2.ID, domain.KindEpic, "E", nil)

		_, err := svc.CreateUserStory(t.Context(), p1.ID, &epic.ID, workitem.CreateParams{Title: "x"})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "parentId", ve.Field)
	})

	t.Run("存在しない親はValidationErrorになること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		_, err := svc.CreateUserStory(t.Context(), p.ID, ptr("missing"), workitem.CreateParams{Title: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("存在しないUserStoryへのTask作成はNotFoundになること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		_, err := svc.CreateTaskForStory(t.Context(), p.ID, "missing", workitem.CreateParams{Title: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("空のタイトルと存在しないプロジェクトは拒否されること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		_, err := svc.CreateEpic(t.Context(), p.ID, workitem.CreateParams{Title: "   "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.CreateEpic(t.Context(), "missing", workitem.CreateParams{Title: "E"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestService_Query(t *testing.T) {
	t.Parallel()

	svc, db, _ := newService(t)
	p := testutil.CreateProject(t, db, "P")
	other := testutil.CreateProject(t, db, "Other")
	epic := testutil.CreateWorkItem(t, db, p.ID, domain.KindEpic, "E", nil)
	story := testutil.CreateWorkItem(t, db, p.ID, domain.KindUserStory, "S", &epic.ID)
	child := testutil.CreateWorkItem(t, db, p.ID, domain.KindTask, "child", &story.ID)
	orphan := testutil.CreateWorkItem(t, db, p.ID, domain.KindTask, "orphan", nil)
	foreign := testutil.CreateWorkItem(t, db, other.ID, domain.KindEpic, "F", nil)

	t.Run("種類で絞り込めること", func(t *testing.T) {
		t.Parallel()
		all, err := svc.List(t.Context(), p.ID, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)

		epics, err := svc.List(t.Context(), p.ID, domain.KindEpic)
		require.NoError(t, err)
		require.Len(t, epics, 1)
		assert.Equal(t, epic.ID, epics[0].ID)
	})

	t.Run("直下の子だけを返すこと", func(t *testing.T) {
		t.Parallel()
		children, err := svc.Children(t.Context(), p.ID, epic.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, story.ID, children[0].ID)
	})

	t.Run("親のないTaskだけを返せること", func(t *testing.T) {
		t.Parallel()
		tasks, err := svc.ListTasks(t.Context(), p.ID, false)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)

		orphans, err := svc.ListTasks(t.Context(), p.ID, true)
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, orphan.ID, orphans[0].ID)
	})

	t.Run("別のプロジェクトの作業項目は見えないこと", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Get(t.Context(), p.ID, foreign.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		title, err := svc.GetTitle(t.Context(), child.ID)
		require.NoError(t, err)
		assert.Equal(t, "child", title)

		_, err = svc.GetTitle(t.Context(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestService_Complete(t *testing.T) {
	t.Parallel()

	t.Run("完了するとTaskUpdatedがプロジェクトのグループに配信されること", func(t *testing.T) {
		t.Parallel()
		svc, db, hub := newService(t)
		p := testutil.CreateProject(t, db, "P")
		task := testutil.CreateWorkItem(t, db, p.ID, domain.KindTask, "T", nil)
		conn := hub.Register("viewer")
		require.NoError(t, hub.JoinProjectGroup(conn.ID(), "viewer", p.ID))

		done, err := svc.Complete(t.Context(), p.ID, task.ID)
		require.NoError(t, err)
		assert.True(t, done.IsCompleted)
		require.NotNil(t, done.CompletedAt)

		select {
		case ev := <-conn.Events():
			assert.Equal(t, event.TypeTaskUpdated, ev.Type)
			data, err := event.DecodeData[event.TaskUpdatedData](ev)
			require.NoError(t, err)
			assert.Equal(t, p.ID, data.ProjectID)
			assert.Equal(t, task.ID, data.WorkItemID)
			assert.True(t, data.IsCompleted)
			require.NotNil(t, data.CompletedAt)
		default:
			t.Fatal("TaskUpdatedが配信されていない")
		}

		again, err := svc.Complete(t.Context(), p.ID, task.ID)
		require.NoError(t, err)
		assert.True(t, again.IsCompleted)
		assert.True(t, done.CompletedAt.Equal(*again.CompletedAt), "完了日時は最初の1回だけ記録される")
		select {
		case <-conn.Events():
			t.Fatal("2回目の完了で配信された")
		default:
		}
	})

	t.Run("購読者がいなくても完了できること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")
		task := testutil.CreateWorkItem(t, db, p.ID, domain.KindTask, "T", nil)

		_, err := svc.Complete(t.Context(), p.ID, task.ID)
		require.NoError(t, err)

		_, err = svc.Complete(t.Context(), p.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	t.Parallel()

	t.Run("子を持つ作業項目は削除できず葉は削除できること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")
		epic := testutil.CreateWorkItem(t, db, p.ID, domain.KindEpic, "E", nil)
		story := testutil.CreateWorkItem(t, db, p.ID, domain.KindUserStory, "S", &epic.ID)
		sibling := testutil.CreateWorkItem(t, db, p.ID, domain.KindUserStory, "S2", &epic.ID)

		err := svc.Delete(t.Context(), p.ID, epic.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)

		require.NoError(t, svc.Delete(t.Context(), p.ID, story.ID))
		_, err = svc.Get(t.Context(), p.ID, story.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// 削除したのはその1件だけ
		_, err = svc.Get(t.Context(), p.ID, epic.ID)
		require.NoError(t, err)
		_, err = svc.Get(t.Context(), p.ID, sibling.ID)
		require.NoError(t, err)
	})

	t.Run("存在しない作業項目の削除はNotFoundになること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		assert.ErrorIs(t, svc.Delete(t.Context(), p.ID, "missing"), domain.ErrNotFound)
	})
}

func TestService_Metrics(t *testing.T) {
	t.Parallel()

	t.Run("Taskだけを集計すること", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")
		alice, bob := "alice-id", "bob-id"

		_, err := svc.CreateEpic(t.Context(), p.ID, workitem.CreateParams{Title: "epic", AssigneeID: &alice})
		require.NoError(t, err)
		t1, err := svc.CreateTask(t.Context(), p.ID, nil, workitem.CreateParams{Title: "t1", AssigneeID: &alice})
		require.NoError(t, err)
		_, err = svc.CreateTask(t.Context(), p.ID, nil, workitem.CreateParams{Title: "t2", AssigneeID: &alice})
		require.NoError(t, err)
		_, err = svc.CreateTask(t.Context(), p.ID, nil, workitem.CreateParams{Title: "t3", AssigneeID: &bob})
		require.NoError(t, err)
		_, err = svc.CreateTask(t.Context(), p.ID, nil, workitem.CreateParams{Title: "unassigned"})
		require.NoError(t, err)
		_, err = svc.Complete(t.Context(), p.ID, t1.ID)
		require.NoError(t, err)

		m, err := svc.Metrics(t.Context(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskMetrics{
			TasksTotal:     4,
			TasksCompleted: 1,
			TasksPerUser:   map[string]int{alice: 2, bob: 1},
		}, m)
	})

	t.Run("Taskのないプロジェクトは0件を返すこと", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := newService(t)
		p := testutil.CreateProject(t, db, "P")

		m, err := svc.Metrics(t.Context(), p.ID)
		require.NoError(t, err)
		assert.Zero(t, m.TasksTotal)
		assert.Zero(t, m.TasksCompleted)
		assert.Empty(t, m.TasksPerUser)
	})

	t.Run("存在しないプロジェクトはNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.Metrics(t.Context(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
