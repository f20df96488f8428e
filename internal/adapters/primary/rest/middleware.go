package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var ownerCtxKey = &contextKey{"owner_id"}

// AuthMiddleware décode le header Authorization et valide le token localement (clé publique).
// Sans header, la requête reste anonyme : c'est chaque handler qui exige ou non une session.
func AuthMiddleware(verifier ports.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			// 1. Pas de header ? On laisse passer (lecture publique)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. Validation du format "Bearer <token>"
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			// 3. Aucun vérificateur configuré : impossible d'authentifier
			if verifier == nil {
				writeJSONError(w, http.StatusUnauthorized, "authentication unavailable")
				return
			}

			ownerID, err := verifier.Verify(tokenStr)
			if err != nil {
				slog.Debug("Token rejected", "error", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			// 4. Succès : On injecte l'identité dans le contexte
			ctx := context.WithValue(r.Context(), ownerCtxKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ForContext récupère l'identité du propriétaire de la session ("" si anonyme)
func ForContext(ctx context.Context) string {
	raw, _ := ctx.Value(ownerCtxKey).(string)
	return raw
}

// statusRecorder capture le code HTTP pour le log d'accès
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware trace chaque requête (méthode, chemin, statut, durée)
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
