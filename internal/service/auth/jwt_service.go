package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing service-to-service JWT tokens.
// The API has no end users of its own; tokens identify the calling service
// (the chat bot, internal jobs) so submissions can be attributed and revoked
// per caller.
type JWTService interface {
	// GenerateToken creates a signed JWT for the named calling service.
	// Returns the token string or an error if token generation fails.
	GenerateToken(ctx context.Context, service string) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims identifying the calling service if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
// It extends standard JWT registered claims with application-specific fields.
type Claims struct {
	// Service is the name of the calling service the token was issued for.
	Service string `json:"svc,omitempty"`

	// TokenType indicates the purpose of the token. This API only issues
	// "service" tokens; the field guards against tokens minted elsewhere
	// with the same secret being replayed here.
	TokenType string `json:"type,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
