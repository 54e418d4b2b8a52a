package realtime

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/pkg/event"
	"github.com/nao1215/tracker/pkg/middleware"
)

// DefaultHeartbeat はpingイベントを送る既定の間隔。
const DefaultHeartbeat = 15 * time.Second

// StreamHandler は認証済みユーザーの接続をHubに登録し、
// 送信キューをServer-Sent Eventsとして流し続けるハンドラを返す。
// 最初に接続IDを含むconnectedイベントを送る。
func StreamHandler(h *Hub, heartbeat time.Duration, logger *slog.Logger) gin.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		conn := h.Register(userID)
		defer h.Unregister(conn)
		if conn.closed() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "サーバーを停止しています"})
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		hello, err := event.New(event.TypeConnected, event.ConnectedData{ConnectionID: conn.ID()})
		if err != nil {
			logger.Error("connectedイベントの生成に失敗", "error", err)
			return
		}
		writeEvent(c, hello)
		c.Writer.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		ctx := c.Request.Context()
		c.Stream(func(_ io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-conn.Done():
				return false
			case ev := <-conn.Events():
				writeEvent(c, ev)
				return true
			case <-ticker.C:
				ping, err := event.New(event.TypePing, struct{}{})
				if err != nil {
					return false
				}
				writeEvent(c, ping)
				return true
			}
		})
	}
}

// writeEvent はイベントをSSEの1フレームとして書き出す。
func writeEvent(c *gin.Context, ev *event.Event) {
	c.Render(-1, sse.Event{
		Id:    ev.ID,
		Event: string(ev.Type),
		Data:  *ev,
	})
}

// JoinHandler は接続をURLのプロジェクトのグループに参加させるハンドラを返す。
// パスパラメータ connectionId と projectId を使う。
func JoinHandler(h *Hub) gin.HandlerFunc {
	return groupHandler(h.JoinProjectGroup)
}

// LeaveHandler は接続をURLのプロジェクトのグループから外すハンドラを返す。
func LeaveHandler(h *Hub) gin.HandlerFunc {
	return groupHandler(h.LeaveProjectGroup)
}

func groupHandler(op func(connectionID, userID, projectID string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := op(c.Param("connectionId"), userID, c.Param("projectId")); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "接続が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "グループの更新に失敗しました"})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
