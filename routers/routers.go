package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"RecordStore/account"
	"RecordStore/auth"
	"RecordStore/cart"
	"RecordStore/catalog"
	"RecordStore/handlers"
	"RecordStore/jwt"
	"RecordStore/metrics"
	"RecordStore/middleware"
)

// Deps 由Main.go建立後傳入，路由本身不持有全域狀態
type Deps struct {
	Authenticator *auth.Authenticator
	Tokens        *jwt.Service
	Denylist      jwt.Denylist
	Accounts      *account.Service
	Catalog       *catalog.Service
	Carts         *cart.Engine
	Metrics       *metrics.Metrics
	Log           *zap.Logger
}

func SetupRouters(deps Deps) *gin.Engine {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	//建立Gin路由器
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Authorization, X-Request-ID")
		c.Next()
	})
	_ = router.SetTrustedProxies(nil)
	router.Use(middleware.ObservabilityMiddleware(deps.Log, deps.Metrics))

	router.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	//監控
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	////無須權限，使用中間件檢查是否登入
	api.Use(middleware.AuthMiddleware(deps.Tokens, deps.Denylist, deps.Metrics))
	{
		//註冊帳號
		api.POST("/register", func(context *gin.Context) {
			handlers.RegisterHandler(context, deps.Accounts)
		})
		//登入帳號
		api.POST("/login", func(context *gin.Context) {
			handlers.LoginHandler(context, deps.Authenticator, deps.Tokens, deps.Metrics)
		})
		//查詢商品詳細資料
		api.GET("/items/:itemID", func(context *gin.Context) {
			handlers.GetItemHandler(context, deps.Catalog)
		})

		////需要登入，使用中間件檢查是否登入
		loginRequired := api.Group("/user")
		loginRequired.Use(middleware.CheckLoginMiddleware())
		{
			//查詢購物車商品
			loginRequired.GET("/carts", func(context *gin.Context) {
				handlers.GetCartHandler(context, deps.Carts)
			})
			//新增商品至購物車
			loginRequired.POST("/carts/items", func(context *gin.Context) {
				handlers.AddToCartHandler(context, deps.Carts)
			})
			//刪除購物車商品
			loginRequired.DELETE("/carts/items/:itemID", func(context *gin.Context) {
				handlers.DeleteCartItemHandler(context, deps.Carts)
			})
			//清除購物車商品
			loginRequired.DELETE("/carts", func(context *gin.Context) {
				handlers.ClearCartHandler(context, deps.Carts)
			})
			//刪除帳號
			loginRequired.DELETE("/account", func(context *gin.Context) {
				handlers.DeleteAccountHandler(context, deps.Accounts)
			})
			//登出
			loginRequired.POST("/logout", func(context *gin.Context) {
				handlers.LogOutHandler(context, deps.Denylist)
			})
		}

		////需要manager身分，使用中間件檢查是否登入及manager權限
		adminRequired := api.Group("/admin")
		adminRequired.Use(middleware.CheckLoginMiddleware(), middleware.CheckManagerPermissionMiddleware())
		{
			//新增管理者
			adminRequired.POST("/managers", func(context *gin.Context) {
				handlers.CreateManagerHandler(context, deps.Accounts)
			})
			//新增商品
			adminRequired.POST("/items", func(context *gin.Context) {
				handlers.CreateItemHandler(context, deps.Catalog)
			})
			//調整商品庫存
			adminRequired.PATCH("/items/:itemID/stock", func(context *gin.Context) {
				handlers.RestockHandler(context, deps.Catalog)
			})
		}
	}

	return router
}
