package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// writeGrace は読み取り期限を過ぎてからエラーレスポンスを書き終えるまでの猶予。
const writeGrace = time.Second

// Timeout はリクエスト全体に期限を設けるGinミドルウェアを返す。
// dが0以下の場合は何もしない。
//
// context.Contextに期限を設定して上流への呼び出しをキャンセルするだけでなく、
// 接続自体にも読み書きの期限を設定する。ボディを少しずつ送り続けるクライアントがいても
// ボディの読み取りは期限で失敗し、ハンドラは期限内に応答する。
// 書き込み期限はハンドラの終了時に解除し、keep-aliveで再利用される次のリクエストには持ち越さない。
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		deadline := time.Now().Add(d)
		ctx, cancel := context.WithDeadline(c.Request.Context(), deadline)
		defer cancel()

		// httptest.ResponseRecorderなど期限を設定できないWriterではErrNotSupportedになる
		rc := http.NewResponseController(c.Writer)
		// 読み取り期限はハンドラ終了後に読み残したボディを捨てる処理にも効かせる。
		// 次のリクエストの読み取り前にnet/httpが設定し直すため解除しない
		_ = rc.SetReadDeadline(deadline)
		if err := rc.SetWriteDeadline(deadline.Add(writeGrace)); err == nil {
			defer func() { _ = rc.SetWriteDeadline(time.Time{}) }()
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
