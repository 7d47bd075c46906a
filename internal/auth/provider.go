// Package auth defines the authentication collaborator and the local
// provider used by the self-hosted backends.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/clxsh19/llm-chat/internal/models"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserExists is returned when signing up with an email already in use
	ErrUserExists = errors.New("user already exists")
	// ErrUnsupported is returned by providers without federated sign-in
	ErrUnsupported = errors.New("operation not supported by this provider")
)

// Provider is the authentication collaborator. Every call may fail; error
// messages are shown to the user as-is.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password string) (*models.Identity, error)

	// FederatedURL returns the URL the browser opens to sign in with provider.
	FederatedURL(provider, redirectTo string) (string, error)

	// SignInWithFederatedToken completes a federated sign-in with the access
	// token the identity provider handed back to the browser.
	SignInWithFederatedToken(ctx context.Context, accessToken string) (*models.Identity, error)

	SignOut(ctx context.Context, identity models.Identity) error
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
