package security

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

var (
	_ ports.SessionVerifier = (*JWTVerifier)(nil)

	ErrInvalidToken = errors.New("invalid token")
)

// JWTVerifier valide les tokens émis par l'Auth Provider externe.
// On ne détient que la clé PUBLIQUE : ce service ne signe jamais rien.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string // vide = pas de contrôle
	audience  string // vide = pas de contrôle
}

func NewJWTVerifier(publicKeyPEM []byte, issuer, audience string) (*JWTVerifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &JWTVerifier{publicKey: pubKey, issuer: issuer, audience: audience}, nil
}

// Verify vérifie la signature et retourne l'identité opaque (Subject)
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		// Empêche les attaques où l'attaquant force l'algo à "none" ou "HS256"
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
