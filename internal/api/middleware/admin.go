package middleware

import (
	"errors"
	"net/http"

	"github.com/bizscan/bizscan-api/internal/api/shared"
	"github.com/bizscan/bizscan-api/internal/platform/logger"
	"github.com/bizscan/bizscan-api/internal/redact"
	"github.com/bizscan/bizscan-api/internal/service/auth"
)

// AdminKeyHeader is the header carrying the admin API key.
const AdminKeyHeader = "X-Admin-Key"

// AdminMiddleware guards operational endpoints with a pre-shared admin key.
// Only the bcrypt hash of the key is configured; the plaintext key is
// compared per request.
type AdminMiddleware struct {
	verifier auth.KeyVerifier
	keyHash  string
}

// NewAdminMiddleware creates an AdminMiddleware checking presented keys
// against the given bcrypt hash.
func NewAdminMiddleware(verifier auth.KeyVerifier, keyHash string) *AdminMiddleware {
	return &AdminMiddleware{
		verifier: verifier,
		keyHash:  keyHash,
	}
}

// RequireAdminKey rejects requests whose X-Admin-Key header does not match
// the configured hash. Auth failures are logged at WARN level since repeated
// failures against an operational endpoint deserve attention.
func (m *AdminMiddleware) RequireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(AdminKeyHeader)
		if key == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Admin key required")
			return
		}

		if err := m.verifier.Compare(m.keyHash, key); err != nil {
			if errors.Is(err, auth.ErrInvalidAdminKey) {
				shared.RespondWithErrorAndLog(
					w,
					r,
					http.StatusUnauthorized,
					"Invalid admin key",
					err,
					shared.WithElevatedLogLevel(),
				)
				return
			}

			// The configured hash itself is unusable.
			logger.FromContext(r.Context()).
				Error("admin key verification failed", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			return
		}

		next.ServeHTTP(w, r)
	})
}
