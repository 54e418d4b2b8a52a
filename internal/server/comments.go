package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/pkg/middleware"
)

// createCommentRequest はコメント作成のリクエストボディ。
// 空白のみの本文はサービス側で検証する。
type createCommentRequest struct {
	// Body はコメント本文。@でメンションできる。
	Body string `json:"body" binding:"required,max=10000"`
}

// handleListComments は作業項目のコメントを作成順に返すハンドラ。
func (s *Server) handleListComments() gin.HandlerFunc {
	return func(c *gin.Context) {
		comments, err := s.comments.List(c.Request.Context(), c.Param("workItemId"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, comments)
	}
}

// handleCreateComment はコメントを作成し、メンションされたユーザーに通知するハンドラ。
func (s *Server) handleCreateComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		var req createCommentRequest
		if !bindJSON(c, &req) {
			return
		}

		comment, err := s.comments.Create(c.Request.Context(), userID, c.Param("workItemId"), req.Body)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}

// handleDeleteComment はコメントを削除するハンドラ。投稿者と管理者のみ削除できる。
func (s *Server) handleDeleteComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		role := domain.Role(middleware.GetRole(c))
		if err := s.comments.Delete(c.Request.Context(), c.Param("workItemId"), c.Param("commentId"), userID, role); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
