package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindParentKind(t *testing.T) {
	t.Parallel()

	_, ok := KindEpic.ParentKind()
	assert.False(t, ok, "Epicは親を持てない")

	p, ok := KindUserStory.ParentKind()
	require.True(t, ok)
	assert.Equal(t, KindEpic, p)

	p, ok = KindTask.ParentKind()
	require.True(t, ok)
	assert.Equal(t, KindUserStory, p)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind("user_story")
	require.NoError(t, err)
	assert.Equal(t, KindUserStory, k)

	_, err = ParseKind("bug")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWorkItemValidateParent(t *testing.T) {
	t.Parallel()

	epic := &WorkItem{ID: "e1", ProjectID: "p1", Kind: KindEpic}
	story := &WorkItem{ID: "s1", ProjectID: "p1", Kind: KindUserStory}
	otherEpic := &WorkItem{ID: "e2", ProjectID: "p2", Kind: KindEpic}

	t.Run("親なしは常に妥当", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, (&WorkItem{ProjectID: "p1", Kind: KindTask}).ValidateParent(nil))
	})

	t.Run("UserStoryの親はEpic", func(t *testing.T) {
		t.Parallel()
		s := &WorkItem{ProjectID: "p1", Kind: KindUserStory}
		assert.NoError(t, s.ValidateParent(epic))
		assert.ErrorIs(t, s.ValidateParent(story), ErrInvalidInput)
	})

	t.Run("Taskの親はUserStory", func(t *testing.T) {
		t.Parallel()
		task := &WorkItem{ProjectID: "p1", Kind: KindTask}
		assert.NoError(t, task.ValidateParent(story))
		assert.ErrorIs(t, task.ValidateParent(epic), ErrInvalidInput)
	})

	t.Run("Epicは親を持てない", func(t *testing.T) {
		t.Parallel()
		e := &WorkItem{ProjectID: "p1", Kind: KindEpic}
		assert.ErrorIs(t, e.ValidateParent(epic), ErrInvalidInput)
	})

	t.Run("別プロジェクトの親は拒否される", func(t *testing.T) {
		t.Parallel()
		s := &WorkItem{ProjectID: "p1", Kind: KindUserStory}
		err := s.ValidateParent(otherEpic)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "parentId", ve.Field)
	})
}

func TestWorkItemComplete(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := &WorkItem{Kind: KindTask}

	require.True(t, w.Complete(now))
	assert.True(t, w.IsCompleted)
	require.NotNil(t, w.CompletedAt)
	assert.Equal(t, now, *w.CompletedAt)

	assert.False(t, w.Complete(now.Add(time.Hour)), "2回目は変化しない")
	assert.Equal(t, now, *w.CompletedAt)
}
