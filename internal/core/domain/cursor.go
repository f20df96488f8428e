package domain

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageCursor repère la dernière ligne d'une page : (created_at, id).
// L'id départage les profils créés dans la même transaction ou la même microseconde.
type PageCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c PageCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// Encode produit le token opaque renvoyé au client
func (c PageCursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodePageCursor relit un token produit par Encode
func DecodePageCursor(token string) (PageCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return PageCursor{}, invalid("cursor", "invalid page token")
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return PageCursor{}, invalid("cursor", "invalid page token")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return PageCursor{}, invalid("cursor", "invalid page token")
	}
	if _, err := uuid.Parse(id); err != nil {
		return PageCursor{}, invalid("cursor", "invalid page token")
	}
	return PageCursor{CreatedAt: createdAt, ID: id}, nil
}
