package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/griff-web/medai-client/internal/envelope"
)

// Client calls the backend auth endpoints through the resilient envelope and
// keeps the session store in sync with the results.
type Client struct {
	baseURL      string
	loginPath    string
	registerPath string
	mePath       string
	env          *envelope.Envelope
	store        *Store
}

// NewClient constructs an auth client. Empty paths fall back to the backend
// contract defaults.
func NewClient(baseURL, loginPath, registerPath, mePath string, env *envelope.Envelope, store *Store) *Client {
	if loginPath == "" {
		loginPath = "/auth/login"
	}
	if registerPath == "" {
		registerPath = "/auth/register"
	}
	if mePath == "" {
		mePath = "/auth/me"
	}
	return &Client{
		baseURL:      baseURL,
		loginPath:    loginPath,
		registerPath: registerPath,
		mePath:       mePath,
		env:          env,
		store:        store,
	}
}

type credentialResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func parseCredentials(raw json.RawMessage) (credentialResponse, error) {
	var resp credentialResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return credentialResponse{}, envelope.NewError(envelope.KindInvalidSchema, fmt.Errorf("decode auth response: %w", err))
	}
	if resp.Token == "" {
		return credentialResponse{}, envelope.NewError(envelope.KindInvalidSchema, fmt.Errorf("auth response lacks a token"))
	}
	return resp, nil
}

// Login exchanges credentials for a session and saves it. remember selects
// durable versus process-scoped persistence.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (User, error) {
	raw, err := c.env.Do(ctx, envelope.Request{
		Method: http.MethodPost,
		URL:    envelope.JoinURL(c.baseURL, c.loginPath),
		JSON:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return User{}, err
	}
	creds, err := parseCredentials(raw)
	if err != nil {
		return User{}, err
	}
	if err := c.store.Save(creds.Token, creds.User, remember); err != nil {
		return User{}, err
	}
	return creds.User, nil
}

// Register creates an account and saves the returned session.
func (c *Client) Register(ctx context.Context, name, email, password, role string, remember bool) (User, error) {
	raw, err := c.env.Do(ctx, envelope.Request{
		Method: http.MethodPost,
		URL:    envelope.JoinURL(c.baseURL, c.registerPath),
		JSON: map[string]string{
			"name":     name,
			"email":    email,
			"password": password,
			"role":     role,
		},
	})
	if err != nil {
		return User{}, err
	}
	creds, err := parseCredentials(raw)
	if err != nil {
		return User{}, err
	}
	if err := c.store.Save(creds.Token, creds.User, remember); err != nil {
		return User{}, err
	}
	return creds.User, nil
}

// Me validates the stored token against the backend. A 401/403 clears the
// session through the envelope's auth reject hook before the error returns.
func (c *Client) Me(ctx context.Context) (User, error) {
	token := c.store.Token()
	if token == "" {
		return User{}, envelope.NewStatusError(envelope.KindAuthRejected, 0, fmt.Errorf("not logged in"))
	}

	raw, err := c.env.Do(ctx, envelope.Request{
		Method: http.MethodGet,
		URL:    envelope.JoinURL(c.baseURL, c.mePath),
		Token:  token,
	})
	if err != nil {
		return User{}, err
	}

	var resp struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return User{}, envelope.NewError(envelope.KindInvalidSchema, fmt.Errorf("decode profile: %w", err))
	}
	return resp.User, nil
}
