// Package middleware はゲートウェイのGinルーターで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの検証、リクエストID、パニックリカバリ、CORS設定、
// ルート単位のタイムアウト、送信元IP単位のレート制限を含む。
package middleware
