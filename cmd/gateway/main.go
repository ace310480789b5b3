// TickTick MCPゲートウェイのエントリポイント。
// OAuth2 client_credentialsによるトークン発行と、認可済みリクエストの
// MCPツール実行サーバーへの中継を担当する。外部に公開される唯一の入口となる。
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/nao1215/ticktick-mcp-gateway/internal/config"
	"github.com/nao1215/ticktick-mcp-gateway/internal/gateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrNoClients) {
			log.Fatalf("[Config] OAUTH_CLIENTSにクライアントを1件以上設定してください: %v", err)
		}
		log.Fatalf("[Config] 設定の読み込みに失敗: %v", err)
	}
	log.Printf("[Config] %s", cfg.Summary())

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatalf("ゲートウェイの初期化に失敗: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("ゲートウェイの終了処理に失敗: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("ゲートウェイを起動します: :%s", cfg.Port)
	if err := server.Run(ctx); err != nil {
		log.Printf("ゲートウェイの実行に失敗: %v", err)
		return
	}
	log.Printf("ゲートウェイを停止しました")
}
