package models

import "gorm.io/gorm"

type Cart struct {
	gorm.Model
	AccountID uint       `gorm:"uniqueIndex;not null"`
	Lines     []CartLine `gorm:"foreignKey:CartID"`
}

// 每個購物車每項商品最多一列
type CartLine struct {
	ID       uint `gorm:"primarykey"`
	CartID   uint `gorm:"uniqueIndex:idx_cart_item;not null"`
	ItemID   uint `gorm:"uniqueIndex:idx_cart_item;not null"`
	Quantity int  `gorm:"not null"`
}
