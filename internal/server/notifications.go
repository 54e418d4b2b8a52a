package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleListNotifications は認証済みユーザーのメンション通知を新しい順に返すハンドラ。
func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		notifications, err := s.notifications.ListForUser(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

// handleUnreadCount は未読のメンション通知の件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		count, err := s.notifications.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkAsRead は指定した通知を既読にするハンドラ。
// 他のユーザーの通知は存在しないものとして扱う。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		if err := s.notifications.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		if _, err := s.notifications.MarkAllRead(c.Request.Context(), userID); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
