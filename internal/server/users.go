package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/pkg/middleware"
)

// RegisterUser はメールアドレスでユーザーを探し、存在しなければ作成する。
// 既存ユーザーの表示名と権限は変更しない。
func RegisterUser(ctx context.Context, q *store.Queries, email, displayName string, role domain.Role) (domain.User, error) {
	email = strings.TrimSpace(email)
	user, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	if role == "" {
		role = domain.RoleMember
	}
	user = domain.User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}
	if err := q.CreateUser(ctx, user); err != nil {
		// 同時に作成された場合は既存のユーザーを使う
		if existing, getErr := q.GetUserByEmail(ctx, email); getErr == nil {
			return existing, nil
		}
		return domain.User{}, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return user, nil
}

// IssueToken はユーザーのアクセストークンを発行する。
func IssueToken(secret string, u domain.User) (string, error) {
	return middleware.GenerateJWT(secret, middleware.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
	}, middleware.DefaultTokenTTL)
}

// devTokenRequest は開発用トークン発行のリクエストボディ。
type devTokenRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// DisplayName は表示名。
	DisplayName string `json:"displayName" binding:"required,notblank,max=100"`
	// Role は権限。省略時はmember。
	Role string `json:"role" binding:"omitempty,oneof=member admin"`
}

// handleDevToken は開発用にユーザーを登録してJWTトークンを発行するハンドラ。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if !bindJSON(c, &req) {
			return
		}

		user, err := RegisterUser(c.Request.Context(), s.queries, req.Email, req.DisplayName, domain.Role(req.Role))
		if err != nil {
			s.respondError(c, err)
			return
		}

		token, err := IssueToken(s.cfg.JWTSecret, user)
		if err != nil {
			s.respondError(c, fmt.Errorf("トークン生成に失敗: %w", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// handleGetCurrentUser は認証済みユーザーの情報を返すハンドラ。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		user, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// handleListUsers はユーザー一覧を返すハンドラ。メンション候補の表示に使う。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.queries.ListUsers(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}
