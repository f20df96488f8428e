package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

const maxReadRetries = 3

// newReadBackOff est une variable pour que les tests puissent raccourcir les délais
var newReadBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

// readWithRetry rejoue une LECTURE tant que l'erreur est transitoire.
// Les écritures ne passent jamais par ici : seules les contraintes d'unicité les protègent.
func readWithRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(newReadBackOff(), maxReadRetries), ctx)

	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, domain.ErrTransient) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b)
}
