package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credbroker/internal/domain"
)

func kvBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sys/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/secret/data/prod", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"data":{"data":{"password":"hunter2"}}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func connectedKVAdapter(t *testing.T, token string) *HTTPKVAdapter {
	t.Helper()
	server := kvBackend(t)
	a := NewHTTPKVAdapter(2 * time.Second)
	err := a.Connect(context.Background(), server.URL, domain.AdapterCredentials{Token: token})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return a
}

func TestHTTPKVAdapter_Retrieve(t *testing.T) {
	a := connectedKVAdapter(t, "test-token")
	data, err := a.Retrieve(context.Background(), "secret/data/prod")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if string(data) != `{"password":"hunter2"}` {
		t.Fatalf("data = %s", data)
	}
}

func TestHTTPKVAdapter_NotFound(t *testing.T) {
	a := connectedKVAdapter(t, "test-token")
	_, err := a.Retrieve(context.Background(), "secret/data/absent")
	if !errors.Is(err, domain.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestHTTPKVAdapter_BadToken(t *testing.T) {
	a := connectedKVAdapter(t, "wrong-token")
	_, err := a.Retrieve(context.Background(), "secret/data/prod")
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestHTTPKVAdapter_RejectsTraversal(t *testing.T) {
	a := connectedKVAdapter(t, "test-token")
	_, err := a.Retrieve(context.Background(), "secret/../sys/seal")
	if !errors.Is(err, domain.ErrPathDenied) {
		t.Fatalf("expected ErrPathDenied, got %v", err)
	}
}

func TestHTTPKVAdapter_ConnectRequiresToken(t *testing.T) {
	a := NewHTTPKVAdapter(time.Second)
	err := a.Connect(context.Background(), "http://localhost:8200", domain.AdapterCredentials{})
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestHTTPKVAdapter_RetrieveAfterCleanup(t *testing.T) {
	a := connectedKVAdapter(t, "test-token")
	if err := a.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	_, err := a.Retrieve(context.Background(), "secret/data/prod")
	if !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}
