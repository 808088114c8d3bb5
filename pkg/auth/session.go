// Package auth obtains and holds the bearer token for a sync run.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/fever-order-sync/pkg/client"
	"github.com/rs/zerolog"
)

// TokenPath is the token exchange endpoint.
const TokenPath = "/v1/auth/token"

// TokenTimeout bounds the token request.
const TokenTimeout = 30 * time.Second

// ErrAuthFailed is the sentinel for every authentication failure.
var ErrAuthFailed = errors.New("authentication failed")

// Credentials identify the API user. A non-empty Token takes precedence
// over Username/Password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Token is a bearer credential.
type Token string

// Session authenticates against the API and authorizes subsequent requests
// issued through the same client.
type Session struct {
	client *client.Client
	token  Token
	logger zerolog.Logger
}

// NewSession creates a session bound to c.
func NewSession(c *client.Client, logger zerolog.Logger) *Session {
	return &Session{
		client: c,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Authenticate resolves a bearer token and installs the session as the
// client's authorizer. A pre-issued token is used without a network call.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) (Token, error) {
	if tok := strings.TrimSpace(creds.Token); tok != "" {
		s.logger.Debug().Msg("Using pre-issued bearer token")
		s.install(Token(tok))
		return s.token, nil
	}

	if creds.Username == "" || creds.Password == "" {
		return "", fmt.Errorf("%w: username and password are required without a token", ErrAuthFailed)
	}

	s.logger.Info().Msg("Logging in for token")

	var resp tokenResponse
	err := s.client.SendJSON(ctx, client.Request{
		Method:   http.MethodPost,
		Path:     TokenPath,
		Form:     url.Values{"username": {creds.Username}, "password": {creds.Password}},
		Endpoint: "auth_token",
		Timeout:  TokenTimeout,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	tok := strings.TrimSpace(resp.AccessToken)
	if tok == "" {
		return "", fmt.Errorf("%w: no token returned", ErrAuthFailed)
	}

	s.install(Token(tok))
	return s.token, nil
}

// Authorize attaches the bearer token to req. It is a no-op before
// Authenticate succeeds.
func (s *Session) Authorize(req *http.Request) {
	if s.token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+string(s.token))
}

// Token returns the held token, empty before authentication.
func (s *Session) Token() Token {
	return s.token
}

func (s *Session) install(tok Token) {
	s.token = tok
	s.client.SetAuthorizer(s)
}
