package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"RecordStore/account"
	"RecordStore/catalog"
)

type createManagerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Stock       int             `json:"stock"`
}

type restockRequest struct {
	Delta int `json:"delta"`
}

// 新增管理者帳戶
func CreateManagerHandler(c *gin.Context, accounts *account.Service) {
	var req createManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	manager, err := accounts.RegisterManager(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "成功新增管理者",
		"account": accountResponse(manager),
	})
}

// 新增商品
func CreateItemHandler(c *gin.Context, items *catalog.Service) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := items.CreateItem(c.Request.Context(), catalog.NewItem{
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Stock:       req.Stock,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "成功新增商品",
		"item":    itemResponse(item),
	})
}

// 調整商品庫存
func RestockHandler(c *gin.Context, items *catalog.Service) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := items.Restock(c.Request.Context(), itemID, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功調整庫存",
		"item":    itemResponse(item),
	})
}
