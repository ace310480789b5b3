package oauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
)

const (
	// GrantTypeClientCredentials は唯一サポートするグラントタイプ。
	GrantTypeClientCredentials = "client_credentials"
	// ScopeFull はすべてのMCPツールへのアクセスを表す唯一のスコープ。
	ScopeFull = "mcp:full"
	// TokenTypeBearer はトークンレスポンスのtoken_type。
	TokenTypeBearer = "Bearer"
	// DefaultIssuer はissクレームのデフォルト値。
	DefaultIssuer = "ticktick-mcp-gateway"
	// DefaultTTL はトークン有効期間のデフォルト値。
	DefaultTTL = 900 * time.Second
)

// Claims はアクセストークンのクレーム。
type Claims struct {
	jwt.RegisteredClaims
	// Scope はトークンが許可する範囲。常にScopeFull。
	Scope string `json:"scope"`
}

// Token はトークンエンドポイントが返すアクセストークン。
type Token struct {
	// AccessToken は署名済みのJWT文字列。
	AccessToken string `json:"access_token"`
	// TokenType は常に "Bearer"。
	TokenType string `json:"token_type"`
	// ExpiresIn は有効期間（秒）。
	ExpiresIn int64 `json:"expires_in"`
	// Scope はトークンのスコープ。
	Scope string `json:"scope"`
	// ID はjtiクレーム。ログでトークンを識別するために使う。
	ID string `json:"-"`
	// IssuedAt は発行日時。
	IssuedAt time.Time `json:"-"`
	// ExpiresAt は失効日時。常にIssuedAt + TTL。
	ExpiresAt time.Time `json:"-"`
}

// Issuer はクライアント資格情報を検証してアクセストークンを発行する。
// 状態を持たないため、複数のゴルーチンから同時に呼び出してよい。
type Issuer struct {
	// store は登録済みクライアントの資格情報。
	store *CredentialStore
	// key はHMAC-SHA256の署名鍵。
	key []byte
	// ttl はトークンの有効期間。
	ttl  time.Duration
	opts options
}

// NewIssuer は新しいIssuerを生成する。ttlが0以下の場合はDefaultTTLを使う。
func NewIssuer(store *CredentialStore, key []byte, ttl time.Duration, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		store: store,
		key:   key,
		ttl:   ttl,
		opts:  newOptions(opts),
	}
}

// TTL はトークンの有効期間を返す。
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// IssueToken はクライアント資格情報を検証し、署名済みトークンを発行する。
// グラントタイプを資格情報より先に検証し、client_credentials以外（空を含む）は
// ErrUnsupportedGrantTypeを返す。IDとシークレットのどちらが誤っていても
// 同じErrInvalidClientを返す。発行したトークンはどこにも保存しない。
func (i *Issuer) IssueToken(clientID, clientSecret, grantType string) (*Token, error) {
	if grantType != GrantTypeClientCredentials {
		// grant_typeが無い場合も未対応のグラントタイプとして扱う
		return nil, fmt.Errorf("%w: %q", apierror.ErrUnsupportedGrantType, grantType)
	}

	if clientID == "" || clientSecret == "" || !i.store.Authenticate(clientID, clientSecret) {
		return nil, apierror.ErrInvalidClient
	}

	// NumericDateは秒精度でシリアライズされるため、先に切り捨てて exp = iat + ttl を保つ
	issuedAt := i.opts.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)
	tokenID := uuid.New().String()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.opts.issuer,
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
		Scope: ScopeFull,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(i.ttl / time.Second),
		Scope:       ScopeFull,
		ID:          tokenID,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}
