package jwt

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"RecordStore/apperr"
	"RecordStore/models"
)

// 每種失敗各自獨立，並都屬於ErrUnauthenticated
var (
	ErrMalformedToken   = apperr.New(apperr.ErrUnauthenticated, "malformed token")
	ErrSignatureInvalid = apperr.New(apperr.ErrUnauthenticated, "token signature invalid")
	ErrTokenExpired     = apperr.New(apperr.ErrUnauthenticated, "token expired")
	ErrTokenNotYetValid = apperr.New(apperr.ErrUnauthenticated, "token issued in the future")
)

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Token 驗證後的內容
type Token struct {
	ID        string
	Identity  models.Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service 簽發及驗證Token，金鑰在建立後不再變動
type Service struct {
	method    jwt.SigningMethod
	signKey   crypto.PrivateKey
	verifyKey crypto.PublicKey
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*Service)

// 測試時替換時鐘
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// 使用HS256共用密鑰
func NewHMAC(secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt: empty secret")
	}
	key := append([]byte(nil), secret...)
	return newService(jwt.SigningMethodHS256, key, key, ttl, opts)
}

// 使用RS256金鑰對
func NewRSA(private *rsa.PrivateKey, public *rsa.PublicKey, ttl time.Duration, opts ...Option) (*Service, error) {
	if private == nil || public == nil {
		return nil, errors.New("jwt: missing rsa key")
	}
	return newService(jwt.SigningMethodRS256, private, public, ttl, opts)
}

// 啟動時讀取PEM私鑰及公鑰
func NewRSAFromFiles(privateKeyPath, publicKeyPath string, ttl time.Duration, opts ...Option) (*Service, error) {
	privateKey, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	publicKey, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, err
	}
	return NewRSA(privateKey, publicKey, ttl, opts...)
}

func newService(method jwt.SigningMethod, signKey, verifyKey any, ttl time.Duration, opts []Option) (*Service, error) {
	if ttl <= 0 {
		return nil, errors.New("jwt: ttl must be positive")
	}
	s := &Service{method: method, signKey: signKey, verifyKey: verifyKey, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) TTL() time.Duration { return s.ttl }

// 讀取私鑰
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
}

// 讀取公鑰
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyBytes)
}

// 生成JWT Token
func (s *Service) Issue(identity models.Identity) (string, time.Time, error) {
	issuedAt := jwt.NewNumericDate(s.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(s.ttl))

	claims := Claims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(identity.AccountID), 10),
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	tokenString, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt.Time, nil
}

// 驗證JWT Token並回傳內容，不存取任何外部狀態
func (s *Service) Validate(tokenString string) (Token, error) {
	//先驗證簽章，任何被修改的位元組都回報為簽章錯誤
	if err := s.verifySignature(tokenString); err != nil {
		return Token{}, err
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.verifyKey, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Token{}, classify(err)
	}

	accountID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || accountID == 0 || !claims.Role.Valid() || claims.IssuedAt == nil || claims.ID == "" {
		return Token{}, ErrMalformedToken
	}

	return Token{
		ID:        claims.ID,
		Identity:  models.Identity{AccountID: uint(accountID), Role: claims.Role},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// 不是三段base64url的字串視為格式錯誤，其餘簽章不符一律為簽章錯誤
func (s *Service) verifySignature(tokenString string) error {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}
	for _, part := range parts {
		if part == "" || strings.IndexFunc(part, notBase64URL) >= 0 {
			return ErrMalformedToken
		}
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrMalformedToken
	}
	//最後一個字元的多餘位元不為0時也視為被修改
	if base64.RawURLEncoding.EncodeToString(sig) != parts[2] {
		return ErrSignatureInvalid
	}
	if err := s.method.Verify(parts[0]+"."+parts[1], sig, s.verifyKey); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func notBase64URL(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		return false
	default:
		return true
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	default:
		return ErrMalformedToken
	}
}
