package middleware

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
)

// TokenValidator はAuthorizationヘッダー値を検証して認可情報を返す。
// *oauth.Validator が実装する。
type TokenValidator interface {
	Validate(authorization string) (*oauth.AuthorizationContext, error)
}

// contextKeyClientID はGinコンテキストにクライアントIDを格納するキー。
const contextKeyClientID = "client_id"

// bearerRealm はWWW-Authenticateヘッダーのrealm。
const bearerRealm = "ticktick-mcp"

// BearerAuth はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "client_id" を設定し、リクエストのcontext.Contextに
// 認可情報を格納する。失敗した場合は401とWWW-Authenticateヘッダーを返し、後続を実行しない。
func BearerAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac, err := v.Validate(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, apierror.ErrMissingToken) {
				c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q`, bearerRealm))
			} else {
				c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q, error="invalid_token", error_description=%q`,
					bearerRealm, apierror.From(err).Code))
			}
			apierror.Abort(c, err)
			return
		}

		c.Set(contextKeyClientID, ac.ClientID)
		c.Request = c.Request.WithContext(oauth.WithAuthorization(c.Request.Context(), ac))
		c.Next()
	}
}

// GetClientID はGinコンテキストから認証済みクライアントIDを取得する。
// BearerAuthミドルウェアが事前に適用されている必要がある。
func GetClientID(c *gin.Context) string {
	clientID, _ := c.Get(contextKeyClientID)
	if id, ok := clientID.(string); ok {
		return id
	}
	return ""
}
