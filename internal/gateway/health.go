package gateway

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// gatewayName はヘルスチェックで返すゲートウェイ名。
const gatewayName = "ticktick-mcp-oauth"

// handleHealth はプロセスの生存と設定の要約を返すハンドラを返す。
// 上流には接続せず、秘密情報も返さない。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":               "healthy",
			"gateway":              gatewayName,
			"clients_configured":   s.store.Len(),
			"token_expiry_seconds": int(s.issuer.TTL().Seconds()),
		})
	}
}

// handleReady は上流のツール実行エンドポイントへ到達できるかを返すハンドラを返す。
func (s *Server) handleReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.upstream.Ping(c.Request.Context(), "/"); err != nil {
			log.Printf("[Proxy] 上流の死活確認に失敗: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unavailable",
				"upstream": "unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ready",
			"upstream": "reachable",
		})
	}
}
