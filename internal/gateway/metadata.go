package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
)

// MCPサーバーのメタデータ。
const (
	serverName    = "TickTick MCP Server"
	serverVersion = "1.0.0"
)

// externalOrigin はディスカバリ文書に載せる外部オリジンを組み立てる。
// PUBLIC_URL、X-Forwarded-Proto/X-Forwarded-Host、リクエスト自身の順に採用する。
func (s *Server) externalOrigin(c *gin.Context) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(c.GetHeader("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}
	host := c.Request.Host
	if fwdHost := firstHeaderValue(c.GetHeader("X-Forwarded-Host")); fwdHost != "" {
		host = fwdHost
	}
	return scheme + "://" + host
}

// firstHeaderValue はカンマ区切りのヘッダー値の先頭要素を返す。
func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// handleRoot はディスカバリ文書の一覧を返すハンドラを返す。
func (s *Server) handleRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := s.externalOrigin(c)
		c.JSON(http.StatusOK, gin.H{
			"name":    serverName,
			"message": "Use /sse and /messages for MCP requests and /oauth/token for OAuth flows",
			"metadata": gin.H{
				"mcp":                  origin + "/.well-known/mcp.json",
				"authorization_server": origin + "/.well-known/oauth-authorization-server",
				"protected_resource":   origin + "/.well-known/oauth-protected-resource",
			},
		})
	}
}

// handleMCPMetadata はMCPサーバーのメタデータを返すハンドラを返す。
func (s *Server) handleMCPMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := s.externalOrigin(c)
		c.JSON(http.StatusOK, gin.H{
			"name":    serverName,
			"version": serverVersion,
			"authentication": gin.H{
				"type":      "oauth2-client-credentials",
				"token_url": origin + "/oauth/token",
			},
			"transport": "sse",
			"endpoints": gin.H{
				"sse":      origin + "/sse",
				"messages": origin + "/messages",
			},
		})
	}
}

// handleAuthorizationServerMetadata はRFC 8414の認可サーバーメタデータを返すハンドラを返す。
// client_credentialsグラントのみを公開する。
func (s *Server) handleAuthorizationServerMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := s.externalOrigin(c)
		c.JSON(http.StatusOK, gin.H{
			"issuer":                                origin,
			"token_endpoint":                        origin + "/oauth/token",
			"grant_types_supported":                 []string{oauth.GrantTypeClientCredentials},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
			"scopes_supported":                      []string{oauth.ScopeFull},
			"response_types_supported":              []string{},
		})
	}
}

// handleProtectedResourceMetadata はRFC 9728の保護リソースメタデータを返すハンドラを返す。
func (s *Server) handleProtectedResourceMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := s.externalOrigin(c)
		c.JSON(http.StatusOK, gin.H{
			"resource":                 origin,
			"authorization_servers":    []string{origin},
			"bearer_methods_supported": []string{"header"},
			"scopes_supported":         []string{oauth.ScopeFull},
		})
	}
}
