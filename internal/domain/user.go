package domain

import (
	"strings"
	"time"
)

// Role はユーザーの権限。
type Role string

const (
	// RoleMember は一般メンバー。
	RoleMember Role = "member"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// User は外部の認証基盤が管理するユーザーのうち、このサービスが参照する部分。
type User struct {
	// ID はユーザーの一意識別子。
	ID string `db:"id" json:"id"`
	// Email はメールアドレス。
	Email string `db:"email" json:"email"`
	// DisplayName は表示名。
	DisplayName string `db:"display_name" json:"displayName"`
	// Role は権限。
	Role Role `db:"role" json:"role"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// EmailLocalPart はメールアドレスの@より前の部分を返す。
func (u User) EmailLocalPart() string {
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Project は作業項目をまとめるプロジェクト。
type Project struct {
	// ID はプロジェクトの一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// Name はプロジェクト名。
	Name string `db:"name" json:"name"`
	// Description は説明。
	Description *string `db:"description" json:"description"`
	// OwnerID は作成したユーザーのID。
	OwnerID string `db:"owner_id" json:"ownerId"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
