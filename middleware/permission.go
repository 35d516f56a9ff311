package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"RecordStore/models"
)

// 檢查是否有manager權限，沒有則中止請求
func CheckManagerPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := IdentityFrom(c)
		if !exists {
			AbortUnauthorized(c)
			return
		}
		if identity.Role != models.RoleManager {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "沒有權限",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
