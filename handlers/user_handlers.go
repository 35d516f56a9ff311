package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"RecordStore/account"
	"RecordStore/apperr"
	"RecordStore/auth"
	"RecordStore/jwt"
	"RecordStore/logger"
	"RecordStore/metrics"
	"RecordStore/middleware"
	"RecordStore/models"
)

func accountResponse(a models.Account) gin.H {
	return gin.H{
		"id":    a.ID,
		"email": a.Email,
		"role":  a.Role,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type deleteAccountRequest struct {
	Email string `json:"email" binding:"required"`
}

// 註冊顧客帳戶
func RegisterHandler(c *gin.Context, accounts *account.Service) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	newAccount, err := accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	//成功註冊
	c.JSON(http.StatusCreated, gin.H{
		"message": "使用者已成功註冊",
		"account": accountResponse(newAccount),
	})
}

func LoginHandler(c *gin.Context, authenticator *auth.Authenticator, tokens *jwt.Service, m *metrics.Metrics) {
	//從請求擷取帳號和密碼
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	identity, err := authenticator.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if reason, ok := loginFailureReason(err); ok {
			m.AuthFailure(reason)
		}
		writeError(c, err)
		return
	}

	//生成JWT Token
	token, expiresAt, err := tokens.Issue(identity)
	if err != nil {
		writeError(c, err)
		return
	}

	//成功登入 回傳Token和成功訊息
	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{
		"message":   "成功登入",
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// 登入失敗原因，只用於指標，不回傳給呼叫端
func loginFailureReason(err error) (string, bool) {
	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return "login_invalid_credentials", true
	case errors.Is(err, apperr.ErrAccountDisabled):
		return "login_account_disabled", true
	case errors.Is(err, apperr.ErrCorruptCredentialState):
		return "login_corrupt_credential", true
	default:
		return "", false
	}
}

// 登出，將此Token加入撤銷清單直到過期
func LogOutHandler(c *gin.Context, denylist jwt.Denylist) {
	token, exists := middleware.TokenFrom(c)
	if !exists {
		middleware.AbortUnauthorized(c)
		return
	}

	if middleware.Remaining(token) > 0 {
		if err := denylist.Revoke(c.Request.Context(), jwt.TokenKey(token.ID), token.ExpiresAt); err != nil {
			logger.FromContext(c.Request.Context(), nil).Error("revoke token", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "store_unavailable",
				"message": "登出失敗，請稍後再試",
			})
			return
		}
	}

	c.Header("Authorization", "")
	c.JSON(http.StatusOK, gin.H{
		"message": "成功登出",
	})
}

// 刪除自己的帳號
func DeleteAccountHandler(c *gin.Context, accounts *account.Service) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := accounts.DeleteAccount(c.Request.Context(), identity, req.Email); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Authorization", "")
	c.JSON(http.StatusOK, gin.H{
		"message": "帳號已刪除",
	})
}
