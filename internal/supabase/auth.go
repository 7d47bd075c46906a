package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/models"
)

// ErrConfirmationRequired is returned by SignUp when the project requires
// email confirmation before a session is issued.
var ErrConfirmationRequired = errors.New("check your email to confirm your account")

// AuthError is an error reported by Supabase Auth. Its message is shown to
// the user unchanged.
type AuthError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is lets callers match the provider-neutral auth errors.
func (e *AuthError) Is(target error) bool {
	switch target {
	case auth.ErrInvalidCredentials:
		return e.Code == "invalid_credentials" || e.Code == "invalid_grant"
	case auth.ErrUserExists:
		return e.Code == "user_already_exists" || e.Code == "email_exists"
	}
	return false
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authSession struct {
	AccessToken string   `json:"access_token"`
	User        authUser `json:"user"`
}

// AuthProvider signs users in through Supabase Auth (GoTrue).
type AuthProvider struct {
	client *Client
	jwt    *auth.JWTManager
}

// NewAuthProvider returns a provider using client. When jwtMgr is set,
// federated access tokens are verified locally against the project secret
// instead of asking the Auth server.
func NewAuthProvider(client *Client, jwtMgr *auth.JWTManager) *AuthProvider {
	return &AuthProvider{client: client, jwt: jwtMgr}
}

func (p *AuthProvider) doAuth(ctx context.Context, method, endpoint, token string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.client.baseURL+"/auth/v1/"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.client.setAuthHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAuthError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func parseAuthError(status int, body []byte) error {
	var payload struct {
		Code             interface{} `json:"code"`
		ErrorCode        string      `json:"error_code"`
		Error            string      `json:"error"`
		ErrorDescription string      `json:"error_description"`
		Msg              string      `json:"msg"`
		Message          string      `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &AuthError{StatusCode: status, Code: payload.ErrorCode}
	if e.Code == "" {
		e.Code = payload.Error
	}
	if s, ok := payload.Code.(string); ok && e.Code == "" {
		e.Code = s
	}

	for _, m := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("auth error (status %d)", status)
	}
	return e
}

func (p *AuthProvider) sessionIdentity(respBody []byte) (*models.Identity, error) {
	var s authSession
	if err := json.Unmarshal(respBody, &s); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}
	if s.AccessToken == "" {
		return nil, ErrConfirmationRequired
	}
	return &models.Identity{UserID: s.User.ID, Email: s.User.Email, AccessToken: s.AccessToken}, nil
}

// SignUp implements auth.Provider.
func (p *AuthProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	body := map[string]string{"email": auth.NormalizeEmail(email), "password": password}
	respBody, err := p.doAuth(ctx, http.MethodPost, "signup", "", body)
	if err != nil {
		return nil, err
	}
	return p.sessionIdentity(respBody)
}

// SignInWithPassword implements auth.Provider.
func (p *AuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error) {
	body := map[string]string{"email": auth.NormalizeEmail(email), "password": password}
	respBody, err := p.doAuth(ctx, http.MethodPost, "token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}
	return p.sessionIdentity(respBody)
}

// FederatedURL implements auth.Provider.
func (p *AuthProvider) FederatedURL(provider, redirectTo string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", fmt.Errorf("provider is required")
	}

	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return p.client.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// SignInWithFederatedToken implements auth.Provider.
func (p *AuthProvider) SignInWithFederatedToken(ctx context.Context, accessToken string) (*models.Identity, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	if p.jwt != nil {
		claims, err := p.jwt.VerifyToken(accessToken)
		if err != nil {
			return nil, fmt.Errorf("invalid access token: %w", err)
		}
		return &models.Identity{UserID: claims.Subject, Email: claims.Email, AccessToken: accessToken}, nil
	}

	respBody, err := p.doAuth(ctx, http.MethodGet, "user", accessToken, nil)
	if err != nil {
		return nil, err
	}

	var u authUser
	if err := json.Unmarshal(respBody, &u); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	return &models.Identity{UserID: u.ID, Email: u.Email, AccessToken: accessToken}, nil
}

// SignOut implements auth.Provider.
func (p *AuthProvider) SignOut(ctx context.Context, identity models.Identity) error {
	if identity.AccessToken == "" {
		return nil
	}
	_, err := p.doAuth(ctx, http.MethodPost, "logout", identity.AccessToken, nil)
	return err
}
