package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSigningUnsupported is returned when the store cannot issue signed URLs.
var ErrSigningUnsupported = errors.New("storage: signed urls not supported")

// URLSigner issues time-limited download URLs for private objects.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type unsupportedSigner struct{}

func (unsupportedSigner) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrSigningUnsupported
}

// Signer returns s's URLSigner, or one that always fails with
// ErrSigningUnsupported.
func Signer(s Store) URLSigner {
	if us, ok := s.(URLSigner); ok {
		return us
	}
	return unsupportedSigner{}
}
