package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken токен не прошёл проверку
var ErrInvalidToken = errors.New("invalid token")

// ErrWeakSecret секрет короче 32 байт
var ErrWeakSecret = errors.New("secret key must be at least 32 bytes")

// Issuer имя издателя в токенах
const Issuer = "collapse-config"

// Claims утверждения токена оператора
type Claims struct {
	Operator string `json:"operator"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// TokenIssuer выпускает и проверяет токены операторов (HS256).
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer создаёт издателя из секрета в base64
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if len(decoded) < 32 {
		return nil, ErrWeakSecret
	}
	return &TokenIssuer{secret: decoded, now: time.Now}, nil
}

// Issue выпускает токен оператора на ttl
func (ti *TokenIssuer) Issue(operator string, admin bool, ttl time.Duration) (string, error) {
	now := ti.now()
	claims := &Claims{
		Operator: operator,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Validate проверяет подпись, срок и издателя токена
func (ti *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// GenerateSecureSecret генерирует новый секрет в base64
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
