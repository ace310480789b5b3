package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/event"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/middleware"
)

// 保護されたルートのラベル。
const (
	routeSSE      = "/sse"
	routeMessages = "/messages"
)

// 保護されたリクエストの終了状態。
const (
	outcomeCompleted           = "completed"
	outcomeRejected            = "rejected"
	outcomeUpstreamUnavailable = "upstream_unavailable"
)

// auditTimeout は監査イベント1件の書き込みに許す時間。
const auditTimeout = 2 * time.Second

// observe は保護されたリクエストの終了状態をメトリクスと監査ログに記録するミドルウェアを返す。
// SSEの中継がhttp.ErrAbortHandlerで打ち切られた場合も記録されるよう、deferで処理する。
func (s *Server) observe(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			s.recordOutcome(c, route, time.Since(start))
		}()
		c.Next()
	}
}

// recordOutcome はc.Errorsと認証結果から終了状態を判定して記録する。
func (s *Server) recordOutcome(c *gin.Context, route string, elapsed time.Duration) {
	clientID := middleware.GetClientID(c)
	requestID := middleware.GetRequestID(c)
	method := c.Request.Method

	var (
		outcome   string
		eventType event.Type
		data      any
	)
	switch {
	case hasError(c, apierror.ErrUpstreamUnavailable):
		outcome = outcomeUpstreamUnavailable
		eventType = event.TypeUpstreamUnavailable
		data = event.UpstreamUnavailableData{Method: method, Reason: lastErrorText(c)}
	case clientID == "":
		outcome = outcomeRejected
		eventType = event.TypeAccessDenied
		reason := apierror.ErrMissingToken.Code
		if last := c.Errors.Last(); last != nil {
			reason = apierror.From(last.Err).Code
		}
		data = event.AccessDeniedData{Method: method, Reason: reason, RemoteAddr: c.ClientIP()}
	default:
		outcome = outcomeCompleted
		eventType = event.TypeAccessGranted
		data = event.AccessGrantedData{Method: method, Status: c.Writer.Status(), DurationMillis: elapsed.Milliseconds()}
	}

	s.metrics.protectedRequests.WithLabelValues(route, outcome).Inc()
	if outcome != outcomeRejected {
		s.metrics.forwardDuration.WithLabelValues(route).Observe(elapsed.Seconds())
	}

	ev, err := event.New(requestID, clientID, route, eventType, data)
	if err != nil {
		return
	}
	// クライアントが切断していても記録できるよう、リクエストのキャンセルを引き継がない
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), auditTimeout)
	defer cancel()
	_ = s.recorder.Record(ctx, ev)
}

func hasError(c *gin.Context, target error) bool {
	for _, e := range c.Errors {
		if errors.Is(e.Err, target) {
			return true
		}
	}
	return false
}

func lastErrorText(c *gin.Context) string {
	if last := c.Errors.Last(); last != nil {
		return last.Err.Error()
	}
	return ""
}
