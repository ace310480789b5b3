package oauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
)

// Validator はBearerトークンの署名・有効期限・発行者を検証する。
type Validator struct {
	// key はHMAC-SHA256の署名鍵。
	key    []byte
	parser *jwt.Parser
}

// NewValidator は新しいValidatorを生成する。
func NewValidator(key []byte, opts ...Option) *Validator {
	o := newOptions(opts)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(o.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(o.leeway),
		jwt.WithTimeFunc(o.now),
		jwt.WithStrictDecoding(),
	)
	return &Validator{key: key, parser: parser}
}

// BearerToken は "Authorization: Bearer <token>" ヘッダー値からトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(authorization string) (string, error) {
	fields := strings.Fields(authorization)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", apierror.ErrMissingToken
	}
	return fields[1], nil
}

// Validate はAuthorizationヘッダー値を検証し、認可コンテキストを返す。
func (v *Validator) Validate(authorization string) (*AuthorizationContext, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return nil, err
	}
	return v.ValidateToken(raw)
}

// ValidateToken は生のトークン文字列を検証する。副作用は無く、同じトークンに対しては
// 有効期限内であれば常に同じ結果を返す。
func (v *Validator) ValidateToken(raw string) (*AuthorizationContext, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenMalformed) && v.onlySignatureMalformed(raw):
			return nil, fmt.Errorf("%w: %v", apierror.ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", apierror.ErrTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", apierror.ErrInvalidToken, err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subクレームがありません", apierror.ErrInvalidToken)
	}
	if claims.Scope != ScopeFull {
		return nil, fmt.Errorf("%w: スコープ %q は許可されていません", apierror.ErrInvalidToken, claims.Scope)
	}

	ac := &AuthorizationContext{
		ClientID: claims.Subject,
		Scope:    claims.Scope,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		ac.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		ac.ExpiresAt = claims.ExpiresAt.Time
	}
	return ac, nil
}

// onlySignatureMalformed はヘッダーとクレームは正しく読めるのに、
// それ以降の署名部分だけがbase64として不正かどうかを判定する。
// 2つ目の"."より後ろはすべて署名部分とみなす。
func (v *Validator) onlySignatureMalformed(raw string) bool {
	header, rest, ok := strings.Cut(raw, ".")
	if !ok {
		return false
	}
	claims, _, ok := strings.Cut(rest, ".")
	if !ok {
		return false
	}
	_, _, err := v.parser.ParseUnverified(header+"."+claims+".", &Claims{})
	return err == nil
}
