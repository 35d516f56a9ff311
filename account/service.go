package account

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"RecordStore/apperr"
	"RecordStore/auth"
	"RecordStore/jwt"
	"RecordStore/models"
	"RecordStore/repository"
)

// CartRemover 刪除帳號時清除購物車並歸還庫存
type CartRemover interface {
	DeleteCart(ctx context.Context, identity models.Identity) error
}

// Service 建立及刪除帳號
type Service struct {
	accounts repository.AccountStore
	hasher   *auth.Hasher
	carts    CartRemover
	denylist jwt.Denylist
	tokenTTL time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

type Deps struct {
	Accounts repository.AccountStore
	Hasher   *auth.Hasher
	Carts    CartRemover
	Denylist jwt.Denylist
	TokenTTL time.Duration
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Service{
		accounts: d.Accounts,
		hasher:   d.Hasher,
		carts:    d.Carts,
		denylist: d.Denylist,
		tokenTTL: d.TokenTTL,
		timeout:  d.Timeout,
		log:      d.Log,
	}
}

// 註冊顧客帳戶
func (s *Service) Register(ctx context.Context, email, password string) (models.Account, error) {
	return s.register(ctx, email, password, models.RoleCustomer)
}

// 註冊管理者帳戶，只能由管理者呼叫
func (s *Service) RegisterManager(ctx context.Context, email, password string) (models.Account, error) {
	return s.register(ctx, email, password, models.RoleManager)
}

func (s *Service) register(ctx context.Context, email, password string, role models.Role) (models.Account, error) {
	email = models.NormalizeEmail(email)
	if !ValidateEmail(email) {
		return models.Account{}, apperr.New(apperr.ErrInvalidInput, "invalid email")
	}
	if !ValidatePassword(password) {
		return models.Account{}, apperr.New(apperr.ErrInvalidInput, "password must be 8-50 characters with upper, lower, digit and symbol")
	}

	//檢查Email是否重複
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	_, err := s.accounts.FindByEmail(fctx, email)
	cancel()
	if err == nil {
		return models.Account{}, apperr.ErrEmailAlreadyRegistered
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.Account{}, apperr.Store("find account", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return models.Account{}, err
	}

	account := models.Account{Email: email, PasswordHash: hashed, Role: role, Enabled: true}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	//同時註冊時由唯一索引決定
	if err := s.accounts.Save(sctx, &account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Account{}, apperr.ErrEmailAlreadyRegistered
		}
		return models.Account{}, apperr.Store("save account", err)
	}

	s.log.Info("account registered", zap.Uint("account_id", account.ID), zap.String("role", string(role)))
	return account, nil
}

// 刪除自己的帳號，連同購物車及尚未過期的Token
func (s *Service) DeleteAccount(ctx context.Context, identity models.Identity, targetEmail string) error {
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	caller, err := s.accounts.FindByID(fctx, identity.AccountID)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(apperr.ErrNotFound, "find account", err)
	}
	if err != nil {
		return apperr.Store("find account", err)
	}
	if caller.Email != models.NormalizeEmail(targetEmail) {
		return apperr.New(apperr.ErrForbidden, "accounts can only delete themselves")
	}

	if err := s.carts.DeleteCart(ctx, identity); err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.accounts.Delete(dctx, caller.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Store("delete account", err)
	}

	if s.denylist != nil {
		until := time.Now().Add(s.tokenTTL)
		if err := s.denylist.Revoke(dctx, jwt.SubjectKey(caller.ID), until); err != nil {
			s.log.Error("revoke tokens of deleted account", zap.Uint("account_id", caller.ID), zap.Error(err))
		}
	}

	s.log.Info("account deleted", zap.Uint("account_id", caller.ID))
	return nil
}

// 啟動時建立管理者帳號，已存在時略過
func (s *Service) EnsureManager(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.RegisterManager(ctx, email, password)
	if errors.Is(err, apperr.ErrEmailAlreadyRegistered) {
		return nil
	}
	return err
}
