package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// スタックトレースをERRORでログに出力し、レスポンスを書き始めていなければ500を返す。
// http.ErrAbortHandler はnet/httpに処理を任せるため、そのまま再送出する。
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			logger.Error("ハンドラでパニックが発生しました",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"user_id", GetUserID(c),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				// ストリームの途中では書き直せない
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "内部サーバーエラーが発生しました",
			})
		}()
		c.Next()
	}
}
