package realtime

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/pkg/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustEvent(t *testing.T, typ event.Type, data any) *event.Event {
	t.Helper()
	ev, err := event.New(typ, data)
	require.NoError(t, err)
	return ev
}

// drain はキューに溜まっているイベントをすべて取り出す。
func drain(c *Conn) []*event.Event {
	var evs []*event.Event
	for {
		select {
		case ev := <-c.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestHub_NotifyUser(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーの全接続に配信されること", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		a1 := h.Register("alice")
		a2 := h.Register("alice")
		b := h.Register("bob")

		n, err := h.NotifyUser("alice", mustEvent(t, event.TypeNotification, event.NotificationData{Type: "mention"}))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, drain(a1), 1)
		assert.Len(t, drain(a2), 1)
		assert.Empty(t, drain(b))
	})

	t.Run("接続がない場合はErrNoSubscribersを返すこと", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())

		n, err := h.NotifyUser("nobody", mustEvent(t, event.TypePing, struct{}{}))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, ErrNoSubscribers)
	})

	t.Run("キューが一杯の接続には配信せずErrQueueFullを返すこと", func(t *testing.T) {
		t.Parallel()
		h := NewHub(1, discardLogger())
		full := h.Register("alice")
		ok := h.Register("alice")

		_, err := h.NotifyUser("alice", mustEvent(t, event.TypePing, struct{}{}))
		require.NoError(t, err)
		drain(ok)

		n, err := h.NotifyUser("alice", mustEvent(t, event.TypePing, struct{}{}))
		assert.Equal(t, 1, n)
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.Len(t, drain(full), 1)
		assert.Len(t, drain(ok), 1)
	})

	t.Run("1つの接続には送った順に届くこと", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		c := h.Register("alice")

		var ids []string
		for range 10 {
			ev := mustEvent(t, event.TypePing, struct{}{})
			ids = append(ids, ev.ID)
			_, err := h.NotifyUser("alice", ev)
			require.NoError(t, err)
		}

		var got []string
		for _, ev := range drain(c) {
			got = append(got, ev.ID)
		}
		assert.Equal(t, ids, got)
	})
}

func TestHub_ProjectGroup(t *testing.T) {
	t.Parallel()

	t.Run("参加したプロジェクトのグループにだけ配信されること", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		a := h.Register("alice")
		b := h.Register("bob")
		require.NoError(t, h.JoinProjectGroup(a.ID(), "alice", "p1"))
		require.NoError(t, h.JoinProjectGroup(a.ID(), "alice", "p2"))
		require.NoError(t, h.JoinProjectGroup(b.ID(), "bob", "p2"))

		n, err := h.BroadcastToProjectGroup("p1", mustEvent(t, event.TypeTaskUpdated, event.TaskUpdatedData{ProjectID: "p1"}))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Len(t, drain(a), 1)
		assert.Empty(t, drain(b))

		n, err = h.BroadcastToProjectGroup("p2", mustEvent(t, event.TypeTaskUpdated, event.TaskUpdatedData{ProjectID: "p2"}))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("離脱後は配信されないこと", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		a := h.Register("alice")
		require.NoError(t, h.JoinProjectGroup(a.ID(), "alice", "p1"))
		require.NoError(t, h.LeaveProjectGroup(a.ID(), "alice", "p1"))

		_, err := h.BroadcastToProjectGroup("p1", mustEvent(t, event.TypePing, struct{}{}))
		assert.ErrorIs(t, err, ErrNoSubscribers)
		assert.Empty(t, drain(a))
	})

	t.Run("他のユーザーの接続や存在しない接続はNotFoundになること", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		a := h.Register("alice")

		assert.ErrorIs(t, h.JoinProjectGroup(a.ID(), "mallory", "p1"), domain.ErrNotFound)
		assert.ErrorIs(t, h.JoinProjectGroup("missing", "alice", "p1"), domain.ErrNotFound)
		assert.ErrorIs(t, h.LeaveProjectGroup(a.ID(), "mallory", "p1"), domain.ErrNotFound)
	})
}

func TestHub_Unregister(t *testing.T) {
	t.Parallel()

	t.Run("解除した接続は全グループから外れDoneが閉じること", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		a := h.Register("alice")
		require.NoError(t, h.JoinProjectGroup(a.ID(), "alice", "p1"))

		h.Unregister(a)
		h.Unregister(a)

		select {
		case <-a.Done():
		default:
			t.Fatal("Doneが閉じていない")
		}
		assert.Zero(t, h.ConnectionCount())
		_, err := h.NotifyUser("alice", mustEvent(t, event.TypePing, struct{}{}))
		assert.ErrorIs(t, err, ErrNoSubscribers)
		_, err = h.BroadcastToProjectGroup("p1", mustEvent(t, event.TypePing, struct{}{}))
		assert.ErrorIs(t, err, ErrNoSubscribers)
		assert.ErrorIs(t, h.JoinProjectGroup(a.ID(), "alice", "p1"), domain.ErrNotFound)
	})

	t.Run("DisconnectUserでユーザーの接続がすべて閉じること", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		h.Register("alice")
		h.Register("alice")
		h.Register("bob")

		assert.Equal(t, 2, h.DisconnectUser("alice"))
		assert.Equal(t, 1, h.ConnectionCount())

		h.Close()
		assert.Zero(t, h.ConnectionCount())
	})

	t.Run("Close後の登録は閉じた接続を返すこと", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())
		h.Close()

		c := h.Register("alice")
		assert.True(t, c.closed())
		assert.Zero(t, h.ConnectionCount())
		_, err := h.NotifyUser("alice", mustEvent(t, event.TypePing, struct{}{}))
		assert.ErrorIs(t, err, ErrNoSubscribers)
	})

	t.Run("参加と解除が並行しても閉じた接続がグループに残らないこと", func(t *testing.T) {
		t.Parallel()
		h := NewHub(0, discardLogger())

		var wg sync.WaitGroup
		for range 50 {
			c := h.Register("alice")
			wg.Add(2)
			go func() {
				defer wg.Done()
				err := h.JoinProjectGroup(c.ID(), "alice", "p1")
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("JoinProjectGroup: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				h.Unregister(c)
			}()
		}
		wg.Wait()

		assert.Zero(t, h.ConnectionCount())
		_, err := h.BroadcastToProjectGroup("p1", mustEvent(t, event.TypePing, struct{}{}))
		assert.ErrorIs(t, err, ErrNoSubscribers)
	})
}

func TestGroupNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "project-42", ProjectGroup("42"))
	assert.Equal(t, "user-7", UserGroup("7"))
}
