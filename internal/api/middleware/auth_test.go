package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizscan/bizscan-api/internal/api/shared"
	"github.com/bizscan/bizscan-api/internal/service/auth"
)

// stubJWTService returns canned validation results.
type stubJWTService struct {
	claims      *auth.Claims
	validateErr error
}

func (s *stubJWTService) GenerateToken(ctx context.Context, service string) (string, error) {
	return "stub-token", nil
}

func (s *stubJWTService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return s.claims, nil
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		authHeader      string
		validateErr     error
		claims          *auth.Claims
		expectedStatus  int
		expectedService string
	}{
		{
			name:            "valid token",
			authHeader:      "Bearer valid-token",
			validateErr:     nil,
			claims:          &auth.Claims{Service: "bizscan-bot"},
			expectedStatus:  http.StatusOK,
			expectedService: "bizscan-bot",
		},
		{
			name:           "missing auth header",
			authHeader:     "",
			validateErr:    nil,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid auth format",
			authHeader:     "InvalidFormat",
			validateErr:    nil,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer expired-token",
			validateErr:    auth.ErrExpiredToken,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			validateErr:    auth.ErrInvalidToken,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong token type",
			authHeader:     "Bearer access-token",
			validateErr:    auth.ErrWrongTokenType,
			claims:         nil,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwtService := &stubJWTService{
				claims:      tt.claims,
				validateErr: tt.validateErr,
			}

			middleware := NewAuthMiddleware(jwtService)

			// Create test handler
			var capturedService string
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				service, ok := GetServiceName(r)
				if ok {
					capturedService = service
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Add("Authorization", tt.authHeader)
			}

			recorder := httptest.NewRecorder()

			middleware.Authenticate(nextHandler).ServeHTTP(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)

			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedService, capturedService)
			}
		})
	}
}

func TestGetServiceName(t *testing.T) {
	t.Parallel()

	t.Run("context with service name", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/", nil)
		require.NoError(t, err)
		req = req.WithContext(shared.WithServiceName(req.Context(), "bizscan-bot"))

		service, ok := GetServiceName(req)

		assert.True(t, ok)
		assert.Equal(t, "bizscan-bot", service)
	})

	t.Run("context without service name", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/", nil)
		require.NoError(t, err)

		service, ok := GetServiceName(req)

		assert.False(t, ok)
		assert.Empty(t, service)
	})
}
