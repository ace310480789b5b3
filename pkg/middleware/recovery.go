package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にリクエストIDとともにログへ出力し、500エラーを返す。
// 1つのリクエストの失敗でゲートウェイ全体が停止することはない。
// http.ErrAbortHandlerは接続を打ち切るためのものなので、そのまま投げ直す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if r == http.ErrAbortHandler {
					panic(r)
				}
				log.Printf("[PANIC] %s %s request_id=%s: %v", c.Request.Method, c.Request.URL.Path, GetRequestID(c), r)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				apierror.Abort(c, apierror.ErrServerError)
			}
		}()
		c.Next()
	}
}
