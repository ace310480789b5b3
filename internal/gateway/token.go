package gateway

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/middleware"
)

// maxTokenRequestBytes はトークン要求ボディの上限。
const maxTokenRequestBytes = 64 << 10

// tokenRequest はPOST /oauth/tokenのリクエストボディ。
// JSONとフォームのどちらでも受け付ける。
type tokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

// handleToken はclient_credentialsグラントでアクセストークンを発行するハンドラを返す。
//
// ボディにclient_idがあればIDとシークレットの両方をボディから取り、
// 無ければHTTP Basic認証から取る。両者を混ぜることはない。
func (s *Server) handleToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")

		req, err := bindTokenRequest(c)
		if err != nil {
			log.Printf("[Token] リクエストの解析に失敗 request_id=%s: %v", middleware.GetRequestID(c), err)
			apierror.Abort(c, fmt.Errorf("%w: %v", apierror.ErrInvalidRequest, err))
			return
		}

		clientID, clientSecret := req.ClientID, req.ClientSecret
		if clientID == "" {
			clientID, clientSecret = basicCredentials(c.Request)
		}

		token, err := s.issuer.IssueToken(clientID, clientSecret, req.GrantType)
		if err != nil {
			if errors.Is(err, apierror.ErrInvalidClient) {
				c.Header("WWW-Authenticate", `Basic realm="ticktick-mcp"`)
			}
			log.Printf("[Token] 発行を拒否 client_id=%q reason=%s request_id=%s",
				clientID, apierror.From(err).Code, middleware.GetRequestID(c))
			apierror.Abort(c, err)
			return
		}

		log.Printf("[Token] 発行 client_id=%q jti=%s expires_at=%s",
			clientID, token.ID, token.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
		c.JSON(http.StatusOK, token)
	}
}

// bindTokenRequest はContent-Typeに応じてボディを解析する。
// ボディが無い場合は空の要求として扱う。
func bindTokenRequest(c *gin.Context) (*tokenRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTokenRequestBytes)

	var req tokenRequest
	switch c.ContentType() {
	case binding.MIMEJSON:
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, fmt.Errorf("JSONの解析に失敗: %w", err)
		}
	case binding.MIMEPOSTForm:
		if err := c.ShouldBindWith(&req, binding.FormPost); err != nil {
			return nil, fmt.Errorf("フォームの解析に失敗: %w", err)
		}
	case binding.MIMEMultipartPOSTForm:
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			return nil, fmt.Errorf("フォームの解析に失敗: %w", err)
		}
	case "":
		if c.Request.ContentLength > 0 {
			return nil, errors.New("Content-Typeが指定されていません")
		}
	default:
		return nil, fmt.Errorf("未対応のContent-Type: %s", c.ContentType())
	}
	return &req, nil
}

// basicCredentials はHTTP Basic認証のIDとシークレットを返す。
// RFC 6749 2.3.1に従い、どちらもURLエンコードされている前提で復号する。
func basicCredentials(r *http.Request) (string, string) {
	id, secret, ok := r.BasicAuth()
	if !ok {
		return "", ""
	}
	if v, err := url.QueryUnescape(id); err == nil {
		id = v
	}
	if v, err := url.QueryUnescape(secret); err == nil {
		secret = v
	}
	return id, secret
}

// countTokenRequests はトークン要求の結果をメトリクスに記録するミドルウェアを返す。
// レート制限で拒否された要求も数える。
func (s *Server) countTokenRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		result := "issued"
		if c.Writer.Status() != http.StatusOK {
			result = apierror.ErrServerError.Code
			if last := c.Errors.Last(); last != nil {
				result = apierror.From(last.Err).Code
			}
		}
		s.metrics.tokenRequests.WithLabelValues(result).Inc()
	}
}
