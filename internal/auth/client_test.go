package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/griff-web/medai-client/internal/envelope"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestLoginSavesSession(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	env := envelope.New(envelope.WithTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/auth/login" {
			t.Fatalf("path = %s", req.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if creds["email"] != "dana@clinic.example" || creds["password"] != "hunter2" {
			t.Fatalf("unexpected credentials: %v", creds)
		}
		return jsonResponse(http.StatusOK, `{"token":"tok-9","user":{"name":"Dana","role":"radiologist"}}`), nil
	})))

	client := NewClient("https://api.example.com", "", "", "", env, store)
	user, err := client.Login(context.Background(), "dana@clinic.example", "hunter2", false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Role != "radiologist" {
		t.Fatalf("user = %+v", user)
	}
	if store.Token() != "tok-9" {
		t.Fatalf("token not saved: %q", store.Token())
	}
}

func TestLoginRejectsTokenlessResponse(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	env := envelope.New(envelope.WithTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"user":{"name":"Dana"}}`), nil
	})))

	client := NewClient("https://api.example.com", "", "", "", env, store)
	_, err := client.Login(context.Background(), "dana@clinic.example", "hunter2", false)
	if envelope.KindOf(err) != envelope.KindInvalidSchema {
		t.Fatalf("kind = %q, want %q", envelope.KindOf(err), envelope.KindInvalidSchema)
	}
	if store.Token() != "" {
		t.Fatalf("invalid login response must not save a token: %q", store.Token())
	}
}

func TestMeSendsBearerToken(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save("tok-5", User{Name: "Sam"}, false); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	env := envelope.New(envelope.WithTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/auth/me" {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tok-5" {
			t.Fatalf("authorization = %q", got)
		}
		return jsonResponse(http.StatusOK, `{"user":{"name":"Sam","role":"gp"}}`), nil
	})))

	client := NewClient("https://api.example.com", "", "", "", env, store)
	user, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if user.Role != "gp" {
		t.Fatalf("user = %+v", user)
	}
}

func TestMeWithStaleTokenClearsSession(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save("tok-stale", User{Name: "Sam"}, true); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	requests := 0
	env := envelope.New(
		envelope.WithTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
			requests++
			return jsonResponse(http.StatusUnauthorized, `{}`), nil
		})),
		envelope.WithAuthRejectHook(store.Clear),
	)

	client := NewClient("https://api.example.com", "", "", "", env, store)
	_, err := client.Me(context.Background())
	if envelope.KindOf(err) != envelope.KindAuthRejected {
		t.Fatalf("kind = %q, want %q", envelope.KindOf(err), envelope.KindAuthRejected)
	}
	if requests != 1 {
		t.Fatalf("401 must not be retried; requests = %d", requests)
	}
	if store.Token() != "" {
		t.Fatalf("token must be cleared immediately after auth rejection: %q", store.Token())
	}
}

func TestMeWithoutSessionShortCircuits(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	env := envelope.New(envelope.WithTransport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request should be issued without a token")
		return nil, nil
	})))

	client := NewClient("https://api.example.com", "", "", "", env, store)
	_, err := client.Me(context.Background())
	if envelope.KindOf(err) != envelope.KindAuthRejected {
		t.Fatalf("kind = %q, want %q", envelope.KindOf(err), envelope.KindAuthRejected)
	}
}
