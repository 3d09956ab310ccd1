package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens struct to describe tokens object.
type Tokens struct {
	Access  string
	Refresh string
}

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	Id  string
	Otp bool
	Exp int64
}

type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

var ErrInvalidToken = errors.New("invalid token")

// TokenManager signs and verifies access and refresh tokens.
type TokenManager struct {
	accessKey     []byte
	accessExpire  time.Duration
	refreshKey    []byte
	refreshExpire time.Duration
}

func NewTokenManager(accessKey string, accessExpire time.Duration, refreshKey string, refreshExpire time.Duration) *TokenManager {
	return &TokenManager{
		accessKey:     []byte(accessKey),
		accessExpire:  accessExpire,
		refreshKey:    []byte(refreshKey),
		refreshExpire: refreshExpire,
	}
}

// AccessKey is exposed for the HTTP JWT middleware.
func (m *TokenManager) AccessKey() []byte {
	return m.accessKey
}

// GenerateTokens func for generate a new Access & Refresh tokens.
func (m *TokenManager) GenerateTokens(id string, otp bool) (*Tokens, error) {
	accessToken, err := generateToken(id, otp, m.accessExpire, m.accessKey)
	if err != nil {
		return nil, err
	}

	refreshToken, err := generateToken(id, otp, m.refreshExpire, m.refreshKey)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		Access:  accessToken,
		Refresh: refreshToken,
	}, nil
}

func generateToken(id string, otp bool, expire time.Duration, key []byte) (string, error) {
	claims := jwt.MapClaims{}

	claims["id"] = id
	claims["otp"] = otp
	claims["exp"] = time.Now().Add(expire).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(key)
}

// CheckAndExtractTokenMetadata verifies signature and expiry and returns the claims.
func (m *TokenManager) CheckAndExtractTokenMetadata(token string, kind TokenKind) (*TokenMetadata, error) {
	key := m.accessKey
	if kind == RefreshToken {
		key = m.refreshKey
	}

	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return MetadataFromClaims(claims)
}

// MetadataFromClaims reads the id/otp/exp claims written by GenerateTokens.
func MetadataFromClaims(claims jwt.MapClaims) (*TokenMetadata, error) {
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return nil, ErrInvalidToken
	}
	otp, _ := claims["otp"].(bool)
	exp, _ := claims["exp"].(float64)

	return &TokenMetadata{
		Id:  id,
		Otp: otp,
		Exp: int64(exp),
	}, nil
}
