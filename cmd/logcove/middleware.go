package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/logcove/logcove/pkg/auth"
	"github.com/logcove/logcove/pkg/model"
)

type principalKey struct{}

// principal is the authenticated caller attached to the request context.
type principal struct {
	ClientID string
	Scope    []model.LogProject
}

// APIKeyAuth verifies the X-API-Key header on every request and attaches
// the caller's identity and project scope to the context.
func APIKeyAuth(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			clientID, scope, err := auth.VerifyAPIKey(apiKey, secret)
			if err != nil {
				logger.Warn("Rejected api key", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
				writeJSONError(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal{ClientID: clientID, Scope: scope})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// projectAllowed checks the request's key scope against a project. When no
// principal is present (auth disabled), everything is allowed.
func projectAllowed(r *http.Request, project model.LogProject) bool {
	p, ok := r.Context().Value(principalKey{}).(principal)
	if !ok {
		return true
	}
	return auth.Allowed(p.Scope, project)
}

// RequestLogger logs each HTTP request with its status and duration.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
