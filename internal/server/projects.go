package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/pkg/middleware"
)

// createProjectRequest はプロジェクト作成のリクエストボディ。
type createProjectRequest struct {
	// Name はプロジェクト名。
	Name string `json:"name" binding:"required,notblank,max=200"`
	// Description は説明。
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

// handleCreateProject はプロジェクトを作成するハンドラ。
func (s *Server) handleCreateProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.callerID(c)
		if !ok {
			return
		}

		var req createProjectRequest
		if !bindJSON(c, &req) {
			return
		}

		project := domain.Project{
			ID:          uuid.New().String(),
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			OwnerID:     userID,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.queries.CreateProject(c.Request.Context(), project); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, project)
	}
}

// handleListProjects はプロジェクト一覧を返すハンドラ。
func (s *Server) handleListProjects() gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := s.queries.ListProjects(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

// handleGetProject はプロジェクトを1件返すハンドラ。
func (s *Server) handleGetProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := s.queries.GetProject(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// handleProjectMetrics はプロジェクトのTaskの集計を返すハンドラ。管理者のみ参照できる。
func (s *Server) handleProjectMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if domain.Role(middleware.GetRole(c)) != domain.RoleAdmin {
			s.respondError(c, domain.ErrForbidden)
			return
		}

		metrics, err := s.workItems.Metrics(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, metrics)
	}
}
