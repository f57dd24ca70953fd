package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware authenticates every request with chain and stores the identity
// in the request context. Rejected requests get a 401 JSON response.
func Middleware(chain *Chain, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := chain.Authenticate(r.Context(), r)
			if err != nil {
				logger.Info("rejecting unauthenticated request",
					zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
