package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/workitem"
)

// createWorkItemRequest は作業項目作成のリクエストボディ。
type createWorkItemRequest struct {
	// Title はタイトル。
	Title string `json:"title" binding:"required,notblank,max=200"`
	// Description は説明。
	Description *string `json:"description" binding:"omitempty,max=10000"`
	// AttachmentURL は添付ファイルのURL。
	AttachmentURL *string `json:"attachmentUrl" binding:"omitempty,url"`
	// AssigneeID は担当者のユーザーID。
	AssigneeID *string `json:"assigneeId" binding:"omitempty,uuid"`
	// ParentID は親の作業項目ID。Epicでは無視される。
	ParentID *string `json:"parentId"`
}

func (r createWorkItemRequest) params() workitem.CreateParams {
	return workitem.CreateParams{
		Title:         r.Title,
		Description:   r.Description,
		AttachmentURL: r.AttachmentURL,
		AssigneeID:    r.AssigneeID,
	}
}

// handleListWorkItems はプロジェクトの作業項目一覧を返すハンドラ。
// kindクエリで種類を絞り込める。
func (s *Server) handleListWorkItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		var kind domain.Kind
		if raw := c.Query("kind"); raw != "" {
			k, err := domain.ParseKind(raw)
			if err != nil {
				s.respondError(c, err)
				return
			}
			kind = k
		}

		items, err := s.workItems.List(c.Request.Context(), c.Param("projectId"), kind)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleGetWorkItem は作業項目を1件返すハンドラ。
func (s *Server) handleGetWorkItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.workItems.Get(c.Request.Context(), c.Param("projectId"), c.Param("id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// handleListChildren は作業項目の子を返すハンドラ。
func (s *Server) handleListChildren() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := s.workItems.Children(c.Request.Context(), c.Param("projectId"), c.Param("id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleCreateEpic はEpicを作成するハンドラ。
func (s *Server) handleCreateEpic() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWorkItemRequest
		if !bindJSON(c, &req) {
			return
		}

		item, err := s.workItems.CreateEpic(c.Request.Context(), c.Param("projectId"), req.params())
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// handleCreateUserStory はUserStoryを作成するハンドラ。
func (s *Server) handleCreateUserStory() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWorkItemRequest
		if !bindJSON(c, &req) {
			return
		}

		item, err := s.workItems.CreateUserStory(c.Request.Context(), c.Param("projectId"), req.ParentID, req.params())
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// handleCreateTask はTaskを作成するハンドラ。親は省略できる。
func (s *Server) handleCreateTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWorkItemRequest
		if !bindJSON(c, &req) {
			return
		}

		item, err := s.workItems.CreateTask(c.Request.Context(), c.Param("projectId"), req.ParentID, req.params())
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// handleCreateTaskForStory はUserStoryの下にTaskを作成するハンドラ。
func (s *Server) handleCreateTaskForStory() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWorkItemRequest
		if !bindJSON(c, &req) {
			return
		}

		item, err := s.workItems.CreateTaskForStory(c.Request.Context(), c.Param("projectId"), c.Param("storyId"), req.params())
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// handleListTasks はプロジェクトのTask一覧を返すハンドラ。
// orphansOnly=true の場合は親のないTaskのみ返す。
func (s *Server) handleListTasks() gin.HandlerFunc {
	return func(c *gin.Context) {
		orphansOnly := false
		if raw := c.Query("orphansOnly"); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				s.respondError(c, domain.NewValidationError("orphansOnly", "真偽値を指定してください"))
				return
			}
			orphansOnly = b
		}

		items, err := s.workItems.ListTasks(c.Request.Context(), c.Param("projectId"), orphansOnly)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleCompleteWorkItem は作業項目を完了にするハンドラ。
// 完了済みの項目に対しては何もせず現在の状態を返す。
func (s *Server) handleCompleteWorkItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.workItems.Complete(c.Request.Context(), c.Param("projectId"), c.Param("id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// handleDeleteWorkItem は子のない作業項目を削除するハンドラ。
func (s *Server) handleDeleteWorkItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.workItems.Delete(c.Request.Context(), c.Param("projectId"), c.Param("id")); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
