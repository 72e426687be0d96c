package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// cacheRecord is the on-disk shape of a validated license. The integrity tag
// is an HMAC-SHA256 over key|expires_at|tier|signature with a machine-derived
// secret, so copying the file to another machine or editing any field in
// place invalidates it.
type cacheRecord struct {
	Key          string `json:"key"`
	Tier         string `json:"tier"`
	ExpiresAt    string `json:"expires_at"`
	Signature    string `json:"signature"`
	IntegrityTag string `json:"integrity_tag"`
}

type cache struct {
	mu     sync.Mutex
	path   string
	secret []byte
}

func newCache(path string) *cache {
	return &cache{path: path, secret: machineSecret()}
}

// machineSecret derives the HMAC secret from stable host properties. It is
// obfuscation against casual file edits, not a cryptographic boundary; the
// RSA signature remains the real proof of authenticity.
func machineSecret() []byte {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	seed := fmt.Sprintf("prism-license-cache|%s|%s|%s|%d", host, runtime.GOOS, runtime.GOARCH, os.Getuid())
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

func (c *cache) tag(record *cacheRecord) string {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "%s|%s|%s|%s", record.Key, record.ExpiresAt, record.Tier, record.Signature)
	return hex.EncodeToString(mac.Sum(nil))
}

// write persists the record atomically: temp file in the target directory,
// then rename. Mode 0600 keeps the key out of other users' reach.
func (c *cache) write(record *cacheRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record.IntegrityTag = c.tag(record)

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache record: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "license-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set cache file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// read loads and integrity-checks the cached record. A missing file returns
// (nil, nil); a record whose tag does not match returns ErrCacheTampered.
func (c *cache) read() (*cacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var record cacheRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, ErrCacheTampered
	}

	want := c.tag(&cacheRecord{
		Key:       record.Key,
		Tier:      record.Tier,
		ExpiresAt: record.ExpiresAt,
		Signature: record.Signature,
	})
	if !hmac.Equal([]byte(want), []byte(record.IntegrityTag)) {
		return nil, ErrCacheTampered
	}
	return &record, nil
}
