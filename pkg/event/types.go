package event

import (
	"encoding/json"
	"time"
)

// Type は監査イベントの種類を表す。
type Type string

const (
	// TypeAccessGranted は保護されたルートへのアクセスが許可され、上流へ中継されたことを表す。
	TypeAccessGranted Type = "AccessGranted"
	// TypeAccessDenied はトークン検証に失敗してアクセスが拒否されたことを表す。
	TypeAccessDenied Type = "AccessDenied"
	// TypeUpstreamUnavailable は上流サーバーに到達できなかったことを表す。
	TypeUpstreamUnavailable Type = "UpstreamUnavailable"
)

// Event は保護されたルートへのリクエスト1件の結果を記録する不変の監査レコード。
// トークンや資格情報そのものは決して含めない。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// RequestID はX-Request-IDの値。
	RequestID string `json:"request_id"`
	// ClientID は認証済みクライアントのID。拒否された場合は空。
	ClientID string `json:"client_id"`
	// Route はリクエストが一致したルート（例: "/sse"）。
	Route string `json:"route"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// AccessGrantedData はAccessGrantedイベントのデータ。
type AccessGrantedData struct {
	// Method はHTTPメソッド。
	Method string `json:"method"`
	// Status は上流から返ったステータスコード。
	Status int `json:"status"`
	// DurationMillis は中継に要した時間（ミリ秒）。
	DurationMillis int64 `json:"duration_millis"`
}

// AccessDeniedData はAccessDeniedイベントのデータ。
type AccessDeniedData struct {
	// Method はHTTPメソッド。
	Method string `json:"method"`
	// Reason は拒否理由のエラーコード（例: "token_expired"）。
	Reason string `json:"reason"`
	// RemoteAddr は送信元IP。
	RemoteAddr string `json:"remote_addr,omitempty"`
}

// UpstreamUnavailableData はUpstreamUnavailableイベントのデータ。
type UpstreamUnavailableData struct {
	// Method はHTTPメソッド。
	Method string `json:"method"`
	// Reason は失敗の内容。
	Reason string `json:"reason"`
}
