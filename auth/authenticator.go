package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"RecordStore/apperr"
	"RecordStore/models"
	"RecordStore/repository"
)

// 帳號不存在時用來比對的假雜湊，讓回應時間與密碼錯誤一致
const dummyPassword = "recordstore-timing-equalizer"

// Authenticator 是判斷「呼叫者是誰」的唯一位置
type Authenticator struct {
	accounts repository.AccountStore
	hasher   *Hasher
	dummy    string
	timeout  time.Duration
	log      *zap.Logger
}

func NewAuthenticator(accounts repository.AccountStore, hasher *Hasher, timeout time.Duration, log *zap.Logger) (*Authenticator, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{accounts: accounts, hasher: hasher, dummy: dummy, timeout: timeout, log: log}, nil
}

// 驗證帳號密碼並回傳Identity
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	account, err := a.accounts.FindByEmail(ctx, username)
	cancel()
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return models.Identity{}, apperr.Store("find account", err)
		}
		//帳號不存在仍需執行一次比對
		_, _ = a.hasher.Verify(password, a.dummy)
		return models.Identity{}, apperr.ErrInvalidCredentials
	}

	ok, err := a.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		a.log.Error("stored password hash is corrupt", zap.Uint("account_id", account.ID))
		return models.Identity{}, err
	}
	if !account.Enabled {
		return models.Identity{}, apperr.ErrAccountDisabled
	}
	if !ok {
		return models.Identity{}, apperr.ErrInvalidCredentials
	}

	return models.Identity{AccountID: account.ID, Role: account.Role}, nil
}
