package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/localstore"
	"github.com/aristath/testscriptgen/internal/logging"
	"github.com/aristath/testscriptgen/internal/session"
)

func TestBootstrapListFailureKeepsValidToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "db down"})
	})
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(100 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.User{ID: 1, Username: "alice"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store, err := localstore.NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.SetToken(ctx, "valid-token"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	client := api.New(api.Options{BaseURL: srv.URL + "/api/v1", Tokens: store, Logger: logging.Discard()})
	auth := session.NewAuth(client, store, logging.Discard())
	list := NewTaskList(client, nil, 0, logging.Discard())
	t.Cleanup(list.Close)

	_, err = Bootstrap(ctx, auth, list)
	if api.Message(err) != "db down" {
		t.Fatalf("Bootstrap() error = %v, want the list failure", err)
	}

	token, err := store.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "valid-token" {
		t.Errorf("stored token = %q, want it kept", token)
	}
}
