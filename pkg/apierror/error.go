package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error はHTTPステータスとエラーコードを持つAPIエラー。
type Error struct {
	// Code は機械可読なエラーコード（例: "invalid_client"）。
	Code string
	// Status はクライアントに返すHTTPステータスコード。
	Status int
	// Description は人間向けの説明。秘密情報を含めてはならない。
	Description string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.Code
}

// Body はレスポンスボディ用のJSON表現を返す。
func (e *Error) Body() gin.H {
	return gin.H{
		"error":             e.Code,
		"error_description": e.Description,
	}
}

var (
	// ErrInvalidRequest はトークン要求の形式が不正であることを表す。
	ErrInvalidRequest = &Error{Code: "invalid_request", Status: http.StatusBadRequest, Description: "リクエストの形式が不正です"}
	// ErrUnsupportedGrantType はclient_credentials以外のグラントタイプが要求されたことを表す。
	ErrUnsupportedGrantType = &Error{Code: "unsupported_grant_type", Status: http.StatusBadRequest, Description: "サポートされていないグラントタイプです"}
	// ErrInvalidClient はクライアントIDまたはシークレットが一致しないことを表す。
	// どちらが誤っていたかは明かさない。
	ErrInvalidClient = &Error{Code: "invalid_client", Status: http.StatusUnauthorized, Description: "クライアント認証に失敗しました"}
	// ErrMissingToken はAuthorizationヘッダーが無い、またはBearer形式でないことを表す。
	ErrMissingToken = &Error{Code: "missing_token", Status: http.StatusUnauthorized, Description: "Bearerトークンが必要です"}
	// ErrInvalidSignature はトークンの署名が検証できないことを表す。
	ErrInvalidSignature = &Error{Code: "invalid_signature", Status: http.StatusUnauthorized, Description: "トークンの署名が不正です"}
	// ErrTokenExpired はトークンの有効期限が切れていることを表す。
	ErrTokenExpired = &Error{Code: "token_expired", Status: http.StatusUnauthorized, Description: "トークンの有効期限が切れています"}
	// ErrInvalidToken はトークンの構造・発行者・クレームが不正であることを表す。
	ErrInvalidToken = &Error{Code: "invalid_token", Status: http.StatusUnauthorized, Description: "トークンが無効です"}
	// ErrRateLimited はトークン発行のレート制限を超えたことを表す。
	ErrRateLimited = &Error{Code: "rate_limited", Status: http.StatusTooManyRequests, Description: "リクエストが多すぎます"}
	// ErrUpstreamUnavailable は内部のツール実行エンドポイントに接続できないことを表す。
	ErrUpstreamUnavailable = &Error{Code: "upstream_unavailable", Status: http.StatusBadGateway, Description: "内部サービスとの通信に失敗しました"}
	// ErrNotFound はルーティングに一致しないパスを表す。
	ErrNotFound = &Error{Code: "not_found", Status: http.StatusNotFound, Description: "リソースが見つかりません"}
	// ErrServerError は予期しない内部エラーを表す。
	ErrServerError = &Error{Code: "server_error", Status: http.StatusInternalServerError, Description: "内部サーバーエラーが発生しました"}
)

// From はerrからAPIエラーを取り出す。分類外のエラーはErrServerErrorとして扱う。
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrServerError
}

// Abort はerrに対応するJSONエラーを書き込み、後続のハンドラを中断する。
// errはc.Errorにも登録されるため、外側のミドルウェアから参照できる。
func Abort(c *gin.Context, err error) {
	apiErr := From(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.Status, apiErr.Body())
}

// WriteHTTP はgin.Contextを持たないハンドラ（httputil.ReverseProxyのErrorHandler等）から
// JSONエラーを書き込む。
func WriteHTTP(w http.ResponseWriter, err error) {
	apiErr := From(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr.Body())
}
