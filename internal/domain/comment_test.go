package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDList(t *testing.T) {
	t.Parallel()

	t.Run("JSON配列として保存し順序を保って復元できる", func(t *testing.T) {
		t.Parallel()
		v, err := IDList{"b", "a"}.Value()
		require.NoError(t, err)
		assert.Equal(t, `["b","a"]`, v)

		var got IDList
		require.NoError(t, got.Scan([]byte(`["b","a"]`)))
		assert.Equal(t, IDList{"b", "a"}, got)
	})

	t.Run("nilは空配列になる", func(t *testing.T) {
		t.Parallel()
		v, err := IDList(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)

		var got IDList
		require.NoError(t, got.Scan(nil))
		assert.Empty(t, got)
	})

	t.Run("未知の型はエラー", func(t *testing.T) {
		t.Parallel()
		var got IDList
		assert.Error(t, got.Scan(42))
	})
}

func TestUserEmailLocalPart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "john.doe", User{Email: "john.doe@example.com"}.EmailLocalPart())
	assert.Equal(t, "nodomain", User{Email: "nodomain"}.EmailLocalPart())
}
