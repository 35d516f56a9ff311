package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"RecordStore/cart"
)

type addToCartRequest struct {
	ItemID   uint `json:"itemId" binding:"required"`
	Quantity int  `json:"quantity"`
}

// 查詢購物車商品
func GetCartHandler(c *gin.Context, engine *cart.Engine) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	snapshot, err := engine.ViewCart(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功查詢購物車",
		"cart":    snapshot,
	})
}

// 新增商品至購物車，庫存不足時拒絕而不是自動調整數量
func AddToCartHandler(c *gin.Context, engine *cart.Engine) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	snapshot, err := engine.AddItem(c.Request.Context(), identity, req.ItemID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功新增商品至購物車",
		"cart":    snapshot,
	})
}

// 刪除購物車商品
func DeleteCartItemHandler(c *gin.Context, engine *cart.Engine) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	if err := engine.RemoveItem(c.Request.Context(), identity, itemID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功刪除購物車商品",
	})
}

// 清除購物車商品
func ClearCartHandler(c *gin.Context, engine *cart.Engine) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	if err := engine.ClearCart(c.Request.Context(), identity); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功清除購物車",
	})
}
