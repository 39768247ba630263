// Package auth issues and verifies the bearer tokens that identify the
// actor behind each request.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/crm-electoral-api/internal/models"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the actor identity inside an access token
type Claims struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Seccional string `json:"seccional,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the actor passed to services
func (c *Claims) Actor() models.Actor {
	return models.Actor{
		Name:      c.Name,
		Role:      models.ParseActorRole(c.Role),
		Seccional: c.Seccional,
	}
}

// JWTManager signs and verifies HS256 access tokens
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager creates a manager with the given secret and token lifetime
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues a token for the actor identified by subject
func (m *JWTManager) GenerateToken(subject string, actor models.Actor) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Name:      actor.Name,
		Role:      string(actor.Role),
		Seccional: actor.Seccional,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAndValidate verifies signature and expiry
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
