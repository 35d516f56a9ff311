package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"RecordStore/jwt"
	"RecordStore/logger"
	"RecordStore/metrics"
	"RecordStore/models"
)

const (
	identityKey  = "Identity"
	tokenKey     = "Token"
	bearerPrefix = "Bearer "
)

// 從Authorization header取出Bearer Token
func BearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// 驗證Token並將Identity存入context，不合法時不中止，交由CheckLoginMiddleware判斷
func AuthMiddleware(tokens *jwt.Service, denylist jwt.Denylist, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		raw, ok := BearerToken(authHeader)
		if !ok {
			m.AuthFailure("malformed_header")
			c.Next()
			return
		}

		token, err := tokens.Validate(raw)
		if err != nil {
			m.AuthFailure(reason(err))
			logger.FromContext(c.Request.Context(), nil).Debug("token rejected", zap.Error(err))
			c.Next()
			return
		}

		//檢查Token是否已撤銷
		if denylist != nil {
			revoked, err := isRevoked(c, denylist, token)
			if err != nil {
				logger.FromContext(c.Request.Context(), nil).Error("denylist lookup failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error":   "store_unavailable",
					"message": "暫時無法驗證登入狀態",
				})
				c.Abort()
				return
			}
			if revoked {
				m.AuthFailure("revoked")
				c.Next()
				return
			}
		}

		c.Set(identityKey, token.Identity)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func isRevoked(c *gin.Context, denylist jwt.Denylist, token jwt.Token) (bool, error) {
	for _, key := range []string{jwt.TokenKey(token.ID), jwt.SubjectKey(token.Identity.AccountID)} {
		revoked, err := denylist.IsRevoked(c.Request.Context(), key)
		if err != nil || revoked {
			return revoked, err
		}
	}
	return false, nil
}

func reason(err error) string {
	switch err {
	case jwt.ErrTokenExpired:
		return "expired"
	case jwt.ErrSignatureInvalid:
		return "signature"
	case jwt.ErrTokenNotYetValid:
		return "not_yet_valid"
	default:
		return "malformed"
	}
}

// 取得已驗證的Identity
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// 取得已驗證的Token
func TokenFrom(c *gin.Context) (jwt.Token, bool) {
	v, ok := c.Get(tokenKey)
	if !ok {
		return jwt.Token{}, false
	}
	token, ok := v.(jwt.Token)
	return token, ok
}

// 剩餘有效時間，供撤銷使用
func Remaining(token jwt.Token) time.Duration {
	return time.Until(token.ExpiresAt)
}
