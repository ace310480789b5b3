package oauth

import (
	"context"
	"time"
)

// AuthorizationContext は検証済みトークンから得たリクエスト単位の認可情報。
// 監査とログのために使い、ツールへのアクセス可否は判定しない。
type AuthorizationContext struct {
	// ClientID は認証済みクライアントのID（subクレーム）。
	ClientID string
	// Scope はトークンのスコープ。
	Scope string
	// TokenID はjtiクレーム。
	TokenID string
	// IssuedAt はトークンの発行日時。
	IssuedAt time.Time
	// ExpiresAt はトークンの失効日時。
	ExpiresAt time.Time
}

type contextKey struct{}

// WithAuthorization はコンテキストに認可情報を設定する。
func WithAuthorization(ctx context.Context, ac *AuthorizationContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext はコンテキストから認可情報を取得する。設定されていなければnil。
func FromContext(ctx context.Context) *AuthorizationContext {
	ac, _ := ctx.Value(contextKey{}).(*AuthorizationContext)
	return ac
}
