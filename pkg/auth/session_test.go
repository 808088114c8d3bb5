package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/fever-order-sync/internal/testutil"
	"github.com/Sternrassler/fever-order-sync/pkg/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, mock *testutil.MockAPI) (*Session, *client.Client) {
	t.Helper()
	c, err := client.New(client.DefaultConfig(mock.URL()), zerolog.Nop())
	require.NoError(t, err)
	return NewSession(c, zerolog.Nop()), c
}

func TestAuthenticate_PreIssuedToken(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	s, _ := newSession(t, mock)
	tok, err := s.Authenticate(context.Background(), Credentials{
		Username: "user",
		Password: "pass",
		Token:    "  preset-token \n",
	})

	require.NoError(t, err)
	assert.Equal(t, Token("preset-token"), tok)
	assert.Empty(t, mock.Requests(), "a pre-issued token must not hit the network")
}

func TestAuthenticate_PasswordExchange(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetToken("issued-token")

	s, c := newSession(t, mock)
	tok, err := s.Authenticate(context.Background(), Credentials{Username: "user@example.com", Password: "p&ss"})
	require.NoError(t, err)
	assert.Equal(t, Token("issued-token"), tok)
	assert.Equal(t, Token("issued-token"), s.Token())

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, TokenPath, reqs[0].Path)
	assert.Equal(t, "application/x-www-form-urlencoded", reqs[0].Header.Get("Content-Type"))
	assert.Equal(t, "password=p%26ss&username=user%40example.com", reqs[0].Body)
	assert.Empty(t, reqs[0].Header.Get("Authorization"), "token request carries no bearer")

	// Subsequent requests through the same client are authorized
	_, _ = c.Send(context.Background(), client.Request{Path: "/anything"})
	reqs = mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer issued-token", reqs[1].Header.Get("Authorization"))
}

// respondToken makes the token endpoint answer with resp.
func respondToken(resp testutil.MockResponse) func(*testutil.MockAPI) {
	return func(m *testutil.MockAPI) {
		m.SetResponse(http.MethodPost, TokenPath, resp)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *testutil.MockAPI)
		creds   Credentials
		message string
	}{
		{
			name:    "rejected credentials",
			setup:   respondToken(testutil.NewUnauthorizedResponse()),
			creds:   Credentials{Username: "u", Password: "wrong"},
			message: "status 401",
		},
		{
			name:    "server error",
			setup:   respondToken(testutil.NewServerErrorResponse()),
			creds:   Credentials{Username: "u", Password: "p"},
			message: "status 500",
		},
		{
			name:    "no token in body",
			setup:   respondToken(testutil.NewRawResponse(`{"token_type":"bearer"}`)),
			creds:   Credentials{Username: "u", Password: "p"},
			message: "no token returned",
		},
		{
			name:    "empty token in body",
			setup:   func(m *testutil.MockAPI) { m.SetToken("") },
			creds:   Credentials{Username: "u", Password: "p"},
			message: "no token returned",
		},
		{
			name:    "non-json body",
			setup:   respondToken(testutil.NewRawResponse(`ok`)),
			creds:   Credentials{Username: "u", Password: "p"},
			message: "decode response",
		},
		{
			name:    "missing password",
			setup:   func(m *testutil.MockAPI) {},
			creds:   Credentials{Username: "u"},
			message: "username and password are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			tt.setup(mock)

			s, _ := newSession(t, mock)
			tok, err := s.Authenticate(context.Background(), tt.creds)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAuthFailed), "error %v should wrap ErrAuthFailed", err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, tok)
			assert.Empty(t, s.Token())
		})
	}
}

func TestAuthorize_BeforeAuthentication(t *testing.T) {
	s := &Session{}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	s.Authorize(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}
