package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// webhookIssuer is stamped on every webhook token.
const webhookIssuer = "pixstore-webhook"

// WebhookClaims defines JWT claims for payment webhook callers.
type WebhookClaims struct {
	Caller string `json:"caller"`
	jwt.RegisteredClaims
}

// GenerateWebhookToken signs a webhook bearer token. A zero expiry never expires.
func GenerateWebhookToken(secret, caller string, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", ErrInvalidToken
	}
	now := time.Now().UTC()
	claims := WebhookClaims{
		Caller: caller,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   webhookIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseWebhookToken validates a webhook bearer token and returns its claims.
func ParseWebhookToken(secret string, tokenString string) (*WebhookClaims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &WebhookClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(webhookIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*WebhookClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
