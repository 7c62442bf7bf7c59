package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/pkg/token"
)

// contextKeyUsername はGinコンテキストに認証済みユーザー名を格納するキー。
const contextKeyUsername = "username"

// JWTAuth はベアラートークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "username" を設定する。
func JWTAuth(authority *token.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		result := authority.Validate(tokenString)
		if !result.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": result.Reason.String(),
			})
			return
		}

		c.Set(contextKeyUsername, result.Subject)
		c.Next()
	}
}

// GetUsername はGinコンテキストから認証済みユーザー名を取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUsername(c *gin.Context) string {
	username, _ := c.Get(contextKeyUsername)
	if name, ok := username.(string); ok {
		return name
	}
	return ""
}
