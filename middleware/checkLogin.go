package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 所有身分驗證失敗都回傳相同內容，不透露失敗原因
func AbortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": "尚未登入或登入資訊錯誤",
	})
	c.Abort()
}

// 檢查是否有登入，沒有則中止請求
func CheckLoginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := IdentityFrom(c); !exists {
			AbortUnauthorized(c)
			return
		}

		c.Next()
	}
}
