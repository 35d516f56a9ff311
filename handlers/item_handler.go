package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"RecordStore/catalog"
	"RecordStore/models"
)

func itemResponse(item models.Item) gin.H {
	return gin.H{
		"id":          item.ID,
		"name":        item.Name,
		"description": item.Description,
		"unitPrice":   item.UnitPrice,
		"stock":       item.Stock,
	}
}

// 查詢商品詳細資料
func GetItemHandler(c *gin.Context, items *catalog.Service) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}

	item, err := items.GetItem(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功查詢商品",
		"item":    itemResponse(item),
	})
}
