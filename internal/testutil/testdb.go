// Package testutil はテスト用のデータベースとフィクスチャを提供する。
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/store"
)

// NewDB はt.TempDir()上にマイグレーション済みのSQLiteデータベースを作成する。
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("テスト用DBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := store.Migrate(t.Context(), db, nil); err != nil {
		t.Fatalf("マイグレーションに失敗: %v", err)
	}
	return db
}

// CreateUser はテスト用のユーザーを登録する。
func CreateUser(t *testing.T, db *sqlx.DB, email, displayName string) domain.User {
	t.Helper()

	u := domain.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		Role:        domain.RoleMember,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.New(db).CreateUser(t.Context(), u); err != nil {
		t.Fatalf("テスト用ユーザーの作成に失敗: %v", err)
	}
	return u
}

// CreateProject はテスト用のプロジェクトを作成する。
func CreateProject(t *testing.T, db *sqlx.DB, name string) domain.Project {
	t.Helper()

	p := domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.New(db).CreateProject(t.Context(), p); err != nil {
		t.Fatalf("テスト用プロジェクトの作成に失敗: %v", err)
	}
	return p
}

// CreateWorkItem はテスト用の作業項目を検証なしで直接作成する。
func CreateWorkItem(t *testing.T, db *sqlx.DB, projectID string, kind domain.Kind, title string, parentID *string) domain.WorkItem {
	t.Helper()

	w := domain.WorkItem{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ParentID:  parentID,
		Kind:      kind,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.New(db).CreateWorkItem(t.Context(), w); err != nil {
		t.Fatalf("テスト用作業項目の作成に失敗: %v", err)
	}
	return w
}
