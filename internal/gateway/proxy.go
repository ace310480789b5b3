package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/httpclient"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/middleware"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
)

// HeaderClientID は上流へ認証済みクライアントIDを伝えるヘッダー。
const HeaderClientID = "X-Client-ID"

// Forwarder は認可済みのリクエストを上流のツール実行エンドポイントへ中継する。
// ボディはバイト列のまま転送し、SSEはチャンクが届くたびにフラッシュする。
// 上流に接続できなかった場合は再試行せず502を返す。
type Forwarder struct {
	proxy *httputil.ReverseProxy
}

// forwardState はErrorHandlerからForwardへ中継結果を返すための入れ物。
type forwardState struct {
	err error
}

type forwardStateKey struct{}

// NewForwarder はupstreamへ中継するForwarderを生成する。
func NewForwarder(upstream *httpclient.Client) *Forwarder {
	target := upstream.BaseURL()
	f := &Forwarder{}
	f.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			// Bearerトークンは信頼境界を越えて転送しない
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del(HeaderClientID)
			if ac := oauth.FromContext(pr.In.Context()); ac != nil {
				pr.Out.Header.Set(HeaderClientID, ac.ClientID)
			}
			pr.SetXForwarded()
		},
		Transport:      upstream.Transport(),
		FlushInterval:  -1,
		ModifyResponse: modifyResponse,
		ErrorHandler:   handleProxyError,
	}
	return f
}

// Forward はリクエストを上流へ中継する。
// 上流に到達できなかった場合はapierror.ErrUpstreamUnavailableをc.Errorに登録する。
func (f *Forwarder) Forward(c *gin.Context) {
	st := &forwardState{}
	req := c.Request.WithContext(context.WithValue(c.Request.Context(), forwardStateKey{}, st))
	f.proxy.ServeHTTP(c.Writer, req)
	if st.err != nil {
		_ = c.Error(st.err)
	}
}

// modifyResponse はSSEのレスポンスが途中のプロキシでバッファされないようにする。
func modifyResponse(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		resp.Header.Set("X-Accel-Buffering", "no")
		if resp.Header.Get("Cache-Control") == "" {
			resp.Header.Set("Cache-Control", "no-cache")
		}
	}
	return nil
}

// handleProxyError は上流へのリクエストが失敗した場合に呼ばれる。
// クライアントが切断済みの場合は何も書き込まない。
func handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	st, _ := r.Context().Value(forwardStateKey{}).(*forwardState)
	if errors.Is(r.Context().Err(), context.Canceled) {
		log.Printf("[Proxy] クライアントが切断しました %s %s", r.Method, r.URL.Path)
		return
	}

	log.Printf("[Proxy] 上流への中継に失敗 %s %s: %v", r.Method, r.URL.Path, err)
	if st != nil {
		st.err = fmt.Errorf("%w: %v", apierror.ErrUpstreamUnavailable, err)
	}
	apierror.WriteHTTP(w, apierror.ErrUpstreamUnavailable)
}

// handleStream はGET /sseを上流へ中継するハンドラを返す。
// 接続中のストリーム数を計測し、シャットダウン時にはストリームを打ち切る。
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		stop := context.AfterFunc(s.streamCtx, cancel)
		defer stop()
		c.Request = c.Request.WithContext(ctx)

		s.metrics.activeStreams.Inc()
		defer s.metrics.activeStreams.Dec()

		clientID := middleware.GetClientID(c)
		log.Printf("[Proxy] SSEストリームを開始 client_id=%s request_id=%s", clientID, middleware.GetRequestID(c))
		defer log.Printf("[Proxy] SSEストリームを終了 client_id=%s request_id=%s", clientID, middleware.GetRequestID(c))

		s.forwarder.Forward(c)
	}
}

// handleForward はPOST /messagesとPOST /sseを上流へ中継するハンドラを返す。
func (s *Server) handleForward() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.forwarder.Forward(c)
	}
}
