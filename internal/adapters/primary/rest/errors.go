package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError traduit une erreur du domaine en réponse HTTP.
// Les erreurs inconnues sont loggées et masquées derrière un 500 générique.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error(), Field: vErr.Field})
	case errors.Is(err, domain.ErrSelfFollow),
		errors.Is(err, domain.ErrEmptyUpload),
		errors.Is(err, domain.ErrUnsupportedType):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUploadTooLarge):
		writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, domain.ErrUnauthenticated.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrProfileNotFound):
		writeJSONError(w, http.StatusNotFound, domain.ErrProfileNotFound.Error())
	case errors.Is(err, domain.ErrLinkNotFound):
		writeJSONError(w, http.StatusNotFound, domain.ErrLinkNotFound.Error())
	case errors.Is(err, domain.ErrUsernameTaken):
		writeJSONError(w, http.StatusConflict, domain.ErrUsernameTaken.Error())
	case errors.Is(err, domain.ErrProfileAlreadyExists):
		writeJSONError(w, http.StatusConflict, domain.ErrProfileAlreadyExists.Error())
	case errors.Is(err, domain.ErrAlreadyFollowing):
		writeJSONError(w, http.StatusConflict, domain.ErrAlreadyFollowing.Error())
	case errors.Is(err, domain.ErrTransient):
		slog.Warn("Store unavailable", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "service temporarily unavailable, retry later")
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}
