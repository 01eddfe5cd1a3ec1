package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vnflow/config"
)

func testCreds() config.Credentials {
	return config.Credentials{Username: "someone@example.com", Password: "secret"}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dnse-user-service/api/auth":
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method for auth: %s", r.Method)
			}
			w.Write([]byte(`{"token":"jwt-token"}`))
		case "/dnse-user-service/api/me":
			if got := r.Header.Get("Authorization"); got != "Bearer jwt-token" {
				t.Errorf("unexpected authorization header: %q", got)
			}
			w.Write([]byte(`{"investorId":"0001234567"}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	session, err := NewClient(srv.URL).Login(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.Token != "jwt-token" {
		t.Errorf("unexpected token: %s", session.Token)
	}
	if session.InvestorID != "0001234567" {
		t.Errorf("unexpected investor id: %s", session.InvestorID)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Login(context.Background(), testCreds())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("unexpected status: %d", authErr.Status)
	}
}

func TestLoginAccountLookupFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dnse-user-service/api/auth" {
			w.Write([]byte(`{"token":"jwt-token"}`))
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Login(context.Background(), testCreds())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusInternalServerError {
		t.Errorf("unexpected status: %d", authErr.Status)
	}
}

func TestLoginEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Login(context.Background(), testCreds()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
