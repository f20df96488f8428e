package domain

import (
	"errors"
	"fmt"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrLinkNotFound         = errors.New("social link not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrProfileAlreadyExists = errors.New("user already has a profile")
	ErrAlreadyFollowing     = errors.New("already following this profile")
	ErrSelfFollow           = errors.New("cannot follow yourself")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("not allowed on another user's profile")

	// ErrTransient marque une indisponibilité réseau/DB (éligible au retry en lecture)
	ErrTransient = errors.New("store temporarily unavailable")
)

// ValidationError signale un champ obligatoire manquant ou mal formé.
// Elle est levée AVANT toute écriture.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation est un raccourci pour errors.As sur *ValidationError
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
