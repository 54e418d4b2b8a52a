package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/tracker/internal/comment"
	"github.com/nao1215/tracker/internal/config"
	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/mention"
	"github.com/nao1215/tracker/internal/notification"
	"github.com/nao1215/tracker/internal/realtime"
	"github.com/nao1215/tracker/internal/store"
	"github.com/nao1215/tracker/internal/workitem"
	"github.com/nao1215/tracker/pkg/middleware"
)

// Server はトラッカーのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg config.Config
	// logger は構造化ロガー。
	logger *slog.Logger
	// queries はクエリ実行オブジェクト。
	queries *store.Queries
	// hub はリアルタイム配信の接続レジストリ。
	hub *realtime.Hub
	// workItems は作業項目の操作。
	workItems *workitem.Service
	// comments はコメントの操作。
	comments *comment.Service
	// notifications はメンション通知の保存と配信。
	notifications *notification.Dispatcher
}

// New は新しいサーバーを生成する。dbはマイグレーション済みである必要がある。
func New(cfg config.Config, db *sqlx.DB, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("バリデーターの登録に失敗: %w", err)
	}

	queries := store.New(db)
	uow := store.NewUnitOfWork(db)
	hub := realtime.NewHub(cfg.RealtimeQueueSize, logger.With("component", "realtime"))
	dispatcher := notification.NewDispatcher(queries, hub, logger.With("component", "notification"), cfg.PushTimeout)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.FrontendURLs))

	s := &Server{
		router:        router,
		cfg:           cfg,
		logger:        logger,
		queries:       queries,
		hub:           hub,
		workItems:     workitem.NewService(queries, uow, hub, logger.With("component", "workitem")),
		comments:      comment.NewService(queries, uow, mention.NewResolver(queries), dispatcher, logger.With("component", "comment")),
		notifications: dispatcher,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub はリアルタイム配信の接続レジストリを返す。
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// Run はHTTPサーバーを起動し、ctxが終わるまで待ってから停止する。
// 停止時はストリームを閉じ、処理中のリクエストと配信中の通知の完了をShutdownTimeoutまで待つ。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("HTTPサーバーを起動します", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("HTTPサーバーを停止します")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		// ストリームはShutdownでは終わらないため先に閉じる
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
		}
		if err := s.notifications.Wait(shutdownCtx); err != nil {
			s.logger.Warn("配信中の通知を待ちきれませんでした", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	if s.cfg.DevTokens {
		// 開発用トークン発行（認証不要）
		s.router.POST("/auth/dev-token", s.handleDevToken())
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		// ユーザー
		api.GET("/me", s.handleGetCurrentUser())
		api.GET("/users", s.handleListUsers())

		// プロジェクト
		projects := api.Group("/projects")
		{
			projects.POST("", s.handleCreateProject())
			projects.GET("", s.handleListProjects())
			projects.GET("/:projectId", s.handleGetProject())

			workItems := projects.Group("/:projectId/work-items")
			{
				workItems.GET("", s.handleListWorkItems())
				workItems.POST("/epics", s.handleCreateEpic())
				workItems.POST("/user-stories", s.handleCreateUserStory())
				workItems.POST("/user-stories/:storyId/tasks", s.handleCreateTaskForStory())
				workItems.GET("/:id", s.handleGetWorkItem())
				workItems.GET("/:id/children", s.handleListChildren())
				workItems.POST("/:id/complete", s.handleCompleteWorkItem())
				workItems.DELETE("/:id", s.handleDeleteWorkItem())
			}

			projects.GET("/:projectId/metrics", s.handleProjectMetrics())
			projects.GET("/:projectId/tasks", s.handleListTasks())
			projects.POST("/:projectId/tasks", s.handleCreateTask())
		}

		// コメント
		comments := api.Group("/work-items/:workItemId/comments")
		{
			comments.GET("", s.handleListComments())
			comments.POST("", s.handleCreateComment())
			comments.DELETE("/:commentId", s.handleDeleteComment())
		}

		// メンション通知
		notifications := api.Group("/mention-notifications")
		{
			notifications.GET("", s.handleListNotifications())
			notifications.GET("/unread-count", s.handleUnreadCount())
			notifications.POST("/:id/read", s.handleMarkAsRead())
			notifications.POST("/read-all", s.handleMarkAllAsRead())
		}

		// リアルタイム配信
		rt := api.Group("/realtime")
		{
			rt.GET("/stream", realtime.StreamHandler(s.hub, s.cfg.RealtimeHeartbeat, s.logger.With("component", "realtime")))
			rt.POST("/connections/:connectionId/projects/:projectId", realtime.JoinHandler(s.hub))
			rt.DELETE("/connections/:connectionId/projects/:projectId", realtime.LeaveHandler(s.hub))
		}
	}

	// ヘルスチェック。リアルタイム接続数も返す
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "tracker",
			"connections": s.hub.ConnectionCount(),
		})
	})
}

// callerID は認証済みユーザーのIDを返す。取得できない場合は401を返してfalseを返す。
func (s *Server) callerID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		s.respondError(c, domain.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// respondError はエラーの種類に応じたステータスコードでエラーレスポンスを返す。
func (s *Server) respondError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidInput.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrConflict.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrForbidden.Error()})
	default:
		_ = c.Error(err)
		s.logger.Error("リクエストの処理に失敗", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
	}
}
