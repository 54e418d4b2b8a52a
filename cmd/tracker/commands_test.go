package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/pkg/middleware"
)

// execute はコマンドを実行し、標準出力を返す。
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(t.Context())
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tracker.db")
	t.Setenv("DATABASE_PATH", dbPath)

	const nothing = "0件のマイグレーションを適用しました\n"

	out, err := execute(t, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_init\tpending")

	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.NotEqual(t, nothing, out)

	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, nothing, out)

	out, err = execute(t, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_init\tapplied")
	assert.NotContains(t, out, "pending")
}

func TestDevTokenCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tracker.db")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("JWT_SECRET", "cli-secret")

	t.Run("正常系: トークンを表示する", func(t *testing.T) {
		out, err := execute(t, "dev-token", "--email", "alice@example.com", "--name", "Alice", "--role", "admin")
		require.NoError(t, err)

		claims, err := middleware.ParseJWT("cli-secret", strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, "admin", claims.Role)

		db, err := store.Open(t.Context(), dbPath)
		require.NoError(t, err)
		defer db.Close()
		u, err := store.New(db).GetUserByEmail(t.Context(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, claims.UserID)
	})

	t.Run("異常系: 不正な権限", func(t *testing.T) {
		_, err := execute(t, "dev-token", "--email", "bob@example.com", "--name", "Bob", "--role", "owner")
		assert.Error(t, err)
	})

	t.Run("異常系: 必須フラグがない", func(t *testing.T) {
		_, err := execute(t, "dev-token", "--email", "bob@example.com")
		assert.Error(t, err)
	})
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("PUSH_TIMEOUT", "soon")

	_, err := execute(t, "migrate")
	assert.Error(t, err)
}
