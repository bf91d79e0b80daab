package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"voucher-storefront/internal/model"
	"voucher-storefront/pkg/logger"
)

// AuthMiddleware provides API key authentication
type AuthMiddleware struct {
	apiKey string
	logger *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(apiKey string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey: apiKey,
		logger: log,
	}
}

// Authenticate validates the X-API-Key header. An empty configured key
// disables the check.
func (m *AuthMiddleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" {
			m.logger.Debug("API authentication disabled",
				"path", r.URL.Path,
				"method", r.Method,
			)
			next(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			m.logger.Warn("Missing API key",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			m.sendErrorResponse(w, "Missing API key")
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.apiKey)) != 1 {
			m.logger.Warn("Invalid API key",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			m.sendErrorResponse(w, "Invalid API key")
			return
		}

		next(w, r)
	}
}

// Wrap adapts Authenticate to an http.Handler for router middleware chains
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return m.Authenticate(next.ServeHTTP)
}

func (m *AuthMiddleware) sendErrorResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    "ERR_UNAUTHORIZED",
			Message: message,
		},
	})
}
