// Package gateway はTickTick MCPサーバーの前段に立つOAuth2ゲートウェイを提供する。
//
// client_credentialsグラントでアクセストークンを発行し（POST /oauth/token）、
// 保護されたルート（/sse, /messages）ではBearerトークンを検証したうえで
// 内部のツール実行エンドポイントへリクエストを中継する。
// 外部からアクセス可能な唯一の入口であり、セキュリティの境界線として機能する。
// Bearerトークンは境界を越えて上流へ転送せず、代わりにX-Client-IDを付与する。
package gateway
