package driven

import (
	"context"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// CredentialStore defines the driven port for the single API credential.
type CredentialStore interface {
	// GetOrCreateToken returns the stored token, generating and persisting a
	// random one on first use. Concurrent first calls persist exactly one
	// token and all observe the same value.
	GetOrCreateToken(ctx context.Context) (string, error)

	// FindByToken returns the credential whose token equals candidate exactly.
	// Returns (nil, nil) if there is no match.
	FindByToken(ctx context.Context, candidate string) (*model.Credential, error)
}
