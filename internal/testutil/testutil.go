package testutil

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prism.app/licensing/handlers"
	"prism.app/licensing/internal/ratelimit"
	"prism.app/licensing/models"
	"prism.app/licensing/storage"
)

// TestAdminSecret is the shared secret wired into test servers.
const TestAdminSecret = "test-admin-secret"

// TestSigningKey generates an RSA-2048 key pair for a test.
func TestSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate test signing key: %v", err)
	}
	return key
}

// TestStore creates an empty in-memory store.
func TestStore() *storage.MemoryStore {
	return storage.NewMemoryStore()
}

// CreateTestLicense builds a pro license expiring 30 days out.
func CreateTestLicense(key, email string) *models.License {
	now := time.Now().UTC()
	return &models.License{
		Key:           key,
		Tier:          models.TierPro,
		Email:         email,
		CreatedAt:     now,
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
		SchemaVersion: models.SchemaVersion,
	}
}

// SeedLicense stores a license and registers it in the email index.
func SeedLicense(t *testing.T, store storage.Store, license *models.License) {
	t.Helper()

	ctx := context.Background()
	if err := store.Put(ctx, license.Key, license); err != nil {
		t.Fatalf("Failed to seed license %s: %v", license.Key, err)
	}
	if err := store.AppendEmailIndex(ctx, license.Email, license.Key); err != nil {
		t.Fatalf("Failed to index license %s: %v", license.Key, err)
	}
}

// NewTestServer wires a full authority on an in-memory store with a fresh
// signing key and a generous rate limit.
func NewTestServer(t *testing.T) (*handlers.Server, *storage.MemoryStore, *rsa.PrivateKey) {
	t.Helper()

	store := TestStore()
	key := TestSigningKey(t)
	server := handlers.NewServer(handlers.ServerConfig{
		Storage:     store,
		Limiter:     ratelimit.New(store, 1000, time.Minute),
		SigningKey:  key,
		AdminSecret: TestAdminSecret,
		Version:     "test",
	})
	return server, store, key
}

// MakeValidateRequest sends GET /validate?key= through the full router.
func MakeValidateRequest(t *testing.T, server *handlers.Server, licenseKey string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/validate?key="+licenseKey, nil)
	req.RemoteAddr = "192.0.2.1:54321"

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

// MakeAdminRequest sends an authenticated admin request through the router.
// Pass an empty token to omit the Authorization header.
func MakeAdminRequest(t *testing.T, server *handlers.Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

// DecodeJSON unmarshals a recorded response body.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}

// CountingStore wraps a Store and counts Get calls, so tests can prove the
// rate limiter rejects before any lookup happens.
type CountingStore struct {
	storage.Store
	GetCalls int
}

func (c *CountingStore) Get(ctx context.Context, key string) (*models.License, error) {
	c.GetCalls++
	return c.Store.Get(ctx, key)
}
