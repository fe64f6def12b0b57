package localstore

import (
	"context"
	"path/filepath"
	"testing"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := testStore(t)
	b := testStore(t)

	if err := a.SetToken(ctx, "token-a"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	got, err := b.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "" {
		t.Errorf("second store saw token %q", got)
	}
}

func TestKVRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := store.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || got != "v2" {
		t.Errorf("Get(k) = %q, %v, %v; want v2", got, ok, err)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() of absent key error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("key still present after Delete")
	}
}

func TestTokenLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SetToken(ctx, "jwt-1"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	got, err := store.Token(ctx)
	if err != nil || got != "jwt-1" {
		t.Fatalf("Token() = %q, %v", got, err)
	}

	// Stored under the same key the web dashboard uses.
	raw, ok, _ := store.Get(ctx, KeyToken)
	if !ok || raw != "jwt-1" {
		t.Errorf("raw %s = %q", KeyToken, raw)
	}

	if err := store.ClearToken(ctx); err != nil {
		t.Fatalf("ClearToken() error = %v", err)
	}
	if got, _ := store.Token(ctx); got != "" {
		t.Errorf("Token() after clear = %q", got)
	}
}

func TestEncryptedAPIKey(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, ok, err := store.EncryptedAPIKey(ctx); err != nil || ok {
		t.Fatalf("EncryptedAPIKey() on empty store = ok %v, err %v", ok, err)
	}

	if err := store.SetEncryptedAPIKey(ctx, StoredKey{Value: "c2VhbGVk", Provider: "openai"}); err != nil {
		t.Fatalf("SetEncryptedAPIKey() error = %v", err)
	}

	got, ok, err := store.EncryptedAPIKey(ctx)
	if err != nil || !ok {
		t.Fatalf("EncryptedAPIKey() = ok %v, err %v", ok, err)
	}
	if got.Value != "c2VhbGVk" || got.Provider != "openai" {
		t.Errorf("EncryptedAPIKey() = %+v", got)
	}
}

func TestEncryptedAPIKeyWithoutProvider(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// A key written by an older client carries no provider tag.
	if err := store.Set(ctx, KeyEncryptedAPIKey, "bGVnYWN5"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := store.EncryptedAPIKey(ctx)
	if err != nil || !ok {
		t.Fatalf("EncryptedAPIKey() = ok %v, err %v", ok, err)
	}
	if got.Provider != "" {
		t.Errorf("Provider = %q, want empty", got.Provider)
	}
}

func TestSubmissions(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	empty, err := store.ListSubmissions(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListSubmissions() on empty = %#v, want empty non-nil slice", empty)
	}

	for i, status := range []string{"running", "completed", "running"} {
		if _, err := store.RecordSubmission(ctx, Submission{TaskID: 1, Status: status, Payload: `{"n":` + string(rune('0'+i)) + `}`}); err != nil {
			t.Fatalf("RecordSubmission() error = %v", err)
		}
	}
	if _, err := store.RecordSubmission(ctx, Submission{TaskID: 2, Status: "running", Payload: "{}"}); err != nil {
		t.Fatalf("RecordSubmission() error = %v", err)
	}

	all, err := store.ListSubmissions(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Payload != `{"n":2}` {
		t.Errorf("newest payload = %s, want {\"n\":2}", all[0].Payload)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	limited, err := store.ListSubmissions(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "atsg.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.SetToken(ctx, "persisted"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Token(ctx)
	if err != nil || got != "persisted" {
		t.Errorf("Token() after reopen = %q, %v", got, err)
	}
}
