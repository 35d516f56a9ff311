package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"RecordStore/apperr"
	"RecordStore/logger"
	"RecordStore/middleware"
	"RecordStore/models"
)

// 將錯誤轉換為HTTP回應
func writeError(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context(), nil)

	//身分驗證錯誤一律回傳相同內容
	if apperr.IsCredentialError(err) {
		if errors.Is(err, apperr.ErrCorruptCredentialState) {
			log.Error("corrupt credential state", zap.Error(err))
		}
		middleware.AbortUnauthorized(c)
		return
	}

	var stockErr *apperr.StockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient_stock",
			"message":   "庫存不足",
			"itemId":    stockErr.ItemID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, apperr.ErrEmailAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "email_already_registered", "message": "信箱已被使用"})
	case errors.Is(err, apperr.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_quantity", "message": err.Error()})
	case errors.Is(err, apperr.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "找不到資料"})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		log.Warn("store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable", "message": "服務暫時無法使用"})
	default:
		log.Error("unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "伺服器錯誤"})
	}
	c.Abort()
}

// 綁定請求資料失敗
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_input",
		"message": "綁定請求資料錯誤: " + err.Error(),
	})
}

// 取得已登入的Identity，沒有時回傳401
func currentIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		middleware.AbortUnauthorized(c)
	}
	return identity, ok
}

// 解析路徑上的數字ID
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "不合法的ID",
		})
		return 0, false
	}
	return uint(id), true
}
