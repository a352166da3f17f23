package api

import (
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"playhead/internal/auth"
)

// AuthMiddleware validates the Bearer token from the Authorization header.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health endpoint stays open for device probes
			if r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w)
				return
			}

			// Extract Bearer token
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w)
				return
			}

			if !auth.ValidateToken(parts[1], token) {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserMiddleware extracts the X-Playhead-User header and adds it to context.
// An empty validUsers list accepts any non-empty user.
func UserMiddleware(validUsers []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get("X-Playhead-User"))
			if user != "" {
				if !isValidUser(user, validUsers) {
					writeBadRequest(w, "Invalid user")
					return
				}
				r = r.WithContext(auth.WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isValidUser(user string, validUsers []string) bool {
	if len(validUsers) == 0 {
		return true
	}
	for _, valid := range validUsers {
		if user == valid {
			return true
		}
	}
	return false
}

// requireUser is a helper that returns the user from context or writes an error.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := auth.UserFromContext(r.Context())
	if user == "" {
		writeBadRequest(w, "User not selected")
		return "", false
	}
	return user, true
}

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the response writer to capture the status code
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Printf("%s %s %d %v",
			r.Method,
			r.URL.Path,
			wrapped.status,
			time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RecovererMiddleware recovers from panics and returns a 500 error.
func RecovererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %v\n%s", err, debug.Stack())
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
