package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clxsh19/llm-chat/internal/models"
)

// ErrUserNotFound is returned by a UserStore lookup that matched nothing.
var ErrUserNotFound = errors.New("user not found")

// ErrWeakPassword mirrors the hosted provider's minimum length rule.
var ErrWeakPassword = errors.New("password should be at least 6 characters")

const minPasswordLength = 6

// User is a locally stored account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists local accounts. CreateUser returns ErrUserExists for a
// duplicate email; GetUserByEmail returns ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// LocalProvider authenticates against a UserStore and issues its own tokens.
// It has no federated identity providers.
type LocalProvider struct {
	users UserStore
	jwt   *JWTManager
}

// NewLocalProvider returns a provider backed by users.
func NewLocalProvider(users UserStore, jwtMgr *JWTManager) *LocalProvider {
	return &LocalProvider{users: users, jwt: jwtMgr}
}

// SignUp implements Provider.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := p.users.CreateUser(ctx, email, hashed)
	if err != nil {
		return nil, err
	}

	return p.issue(user.ID, user.Email)
}

// SignInWithPassword implements Provider.
func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error) {
	user, err := p.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.issue(user.ID, user.Email)
}

// FederatedURL implements Provider.
func (p *LocalProvider) FederatedURL(provider, redirectTo string) (string, error) {
	return "", ErrUnsupported
}

// SignInWithFederatedToken accepts a token this provider issued earlier,
// which lets a browser restore its session.
func (p *LocalProvider) SignInWithFederatedToken(ctx context.Context, accessToken string) (*models.Identity, error) {
	claims, err := p.jwt.VerifyToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	return &models.Identity{UserID: claims.Subject, Email: claims.Email, AccessToken: accessToken}, nil
}

// SignOut implements Provider. Tokens are stateless, so there is nothing to revoke.
func (p *LocalProvider) SignOut(ctx context.Context, identity models.Identity) error {
	return nil
}

func (p *LocalProvider) issue(userID, email string) (*models.Identity, error) {
	token, _, err := p.jwt.GenerateToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.Identity{UserID: userID, Email: email, AccessToken: token}, nil
}
