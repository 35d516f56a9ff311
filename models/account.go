package models

import (
	"strings"

	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleManager
}

type Account struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         Role   `gorm:"size:16;not null"`
	Enabled      bool   `gorm:"not null"`
}

// 經過驗證的呼叫者身分
type Identity struct {
	AccountID uint
	Role      Role
}

// 信箱比對一律使用小寫且去除空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
