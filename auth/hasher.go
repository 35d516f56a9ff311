package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"RecordStore/apperr"
)

// Hasher 以bcrypt雜湊及驗證密碼
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// 將密碼Hash
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// 檢查密碼是否正確，digest格式錯誤時回傳ErrCorruptCredentialState而不是false
func (h *Hasher) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperr.Wrap(apperr.ErrCorruptCredentialState, "verify password", err)
	}
}
