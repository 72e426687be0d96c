// Package verifier is the client half of the license protocol. It asks the
// authority to validate a key, checks the returned signature against the
// public key baked into the binary, and keeps a tamper-evident local cache so
// a previously validated license keeps working offline.
package verifier

import (
	"context"
	"crypto/rsa"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"prism.app/licensing/internal/logger"
	"prism.app/licensing/internal/signing"
)

//go:embed prism_pub.pem
var embeddedPublicKey []byte

// Verdict sources, in order of trust.
const (
	SourceOnline = "online"
	SourceCache  = "cache"
	SourceNone   = "none"
)

var (
	// ErrSignatureInvalid means the authority's response did not verify
	// against the embedded public key. This is an integrity failure, not a
	// statement about the license itself.
	ErrSignatureInvalid = errors.New("response signature verification failed")

	// ErrCacheTampered means the local cache file failed its HMAC check.
	ErrCacheTampered = errors.New("license cache integrity check failed")

	errTransient = errors.New("license server unavailable")
)

// LicenseStatus is the outcome of a license check. Source records where the
// verdict came from: a live server response, the local cache, or nowhere.
type LicenseStatus struct {
	Valid     bool
	Tier      string
	ExpiresAt time.Time
	Source    string
}

// validateResponse mirrors the authority's /validate wire format.
type validateResponse struct {
	Valid         bool   `json:"valid"`
	Tier          string `json:"tier,omitempty"`
	Email         string `json:"email,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
	Signature     string `json:"signature,omitempty"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
}

type Verifier struct {
	baseURL   string
	client    *http.Client
	publicKey *rsa.PublicKey
	cache     *cache
}

// New builds a verifier against baseURL using the embedded public key and the
// default cache location under the user config directory.
func New(baseURL string) (*Verifier, error) {
	key, err := signing.ParsePublicKey(embeddedPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded public key: %w", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}

	return NewWithKey(baseURL, key, filepath.Join(configDir, "prism", "license.json")), nil
}

// NewWithKey builds a verifier with an explicit public key and cache path.
func NewWithKey(baseURL string, publicKey *rsa.PublicKey, cachePath string) *Verifier {
	return &Verifier{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		publicKey: publicKey,
		cache:     newCache(cachePath),
	}
}

// CheckLicense validates key, preferring a live answer from the authority.
// When the server cannot be reached (or answers 429/5xx) it falls back to the
// local cache. A definitive server rejection is returned as-is and never
// falls back: the server outranks the cache.
func (v *Verifier) CheckLicense(ctx context.Context, key string) (LicenseStatus, error) {
	none := LicenseStatus{Source: SourceNone}
	if key == "" {
		return none, nil
	}

	resp, err := v.fetch(ctx, key)
	if err != nil {
		logger.Debug("Online validation unavailable, trying cache", map[string]interface{}{
			"error": err.Error(),
		})
		return v.checkCache(key)
	}

	if !resp.Valid {
		return LicenseStatus{Source: SourceOnline}, nil
	}

	return v.verifyAndCache(key, resp)
}

// Activate validates key online and, on success, persists it locally so later
// launches can check the stored key. Activation never uses the cache: the
// whole point is a fresh server verdict. The returned string is suitable for
// showing to the user.
func (v *Verifier) Activate(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("license key is required")
	}

	resp, err := v.fetch(ctx, key)
	if err != nil {
		return "", fmt.Errorf("could not reach license server: %w", err)
	}
	if !resp.Valid {
		reason := resp.Error
		if reason == "" {
			reason = "license rejected"
		}
		return "", fmt.Errorf("activation failed: %s", reason)
	}

	status, err := v.verifyAndCache(key, resp)
	if err != nil {
		return "", err
	}

	logger.Info("License activated", map[string]interface{}{
		"license_key": key,
		"tier":        status.Tier,
	})
	return fmt.Sprintf("License activated: %s tier, %d days remaining", status.Tier, resp.DaysRemaining), nil
}

// StoredKey returns the license key persisted by a previous activation, or an
// empty string when none is stored.
func (v *Verifier) StoredKey() (string, error) {
	record, err := v.cache.read()
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.Key, nil
}

// CheckStored validates whatever key a previous activation persisted.
func (v *Verifier) CheckStored(ctx context.Context) (LicenseStatus, error) {
	key, err := v.StoredKey()
	if err != nil {
		return LicenseStatus{Source: SourceNone}, err
	}
	return v.CheckLicense(ctx, key)
}

// verifyAndCache checks a positive server response against the public key and
// records it in the cache. An unverifiable response is discarded without
// touching the cache.
func (v *Verifier) verifyAndCache(key string, resp *validateResponse) (LicenseStatus, error) {
	none := LicenseStatus{Source: SourceNone}

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	if err != nil {
		return none, ErrSignatureInvalid
	}

	message := signing.CanonicalMessage(key, expiresAt, resp.Tier)
	if !signing.Verify(message, resp.Signature, v.publicKey) {
		return none, ErrSignatureInvalid
	}

	if err := v.cache.write(&cacheRecord{
		Key:       key,
		Tier:      resp.Tier,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Signature: resp.Signature,
	}); err != nil {
		// A cache miss later is survivable; a failed check now is not.
		logger.Warn("Failed to write license cache", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return LicenseStatus{
		Valid:     true,
		Tier:      resp.Tier,
		ExpiresAt: expiresAt,
		Source:    SourceOnline,
	}, nil
}

// checkCache is the offline path: the record must pass its HMAC, belong to
// the requested key, and be unexpired.
func (v *Verifier) checkCache(key string) (LicenseStatus, error) {
	none := LicenseStatus{Source: SourceNone}

	record, err := v.cache.read()
	if errors.Is(err, ErrCacheTampered) {
		return none, ErrCacheTampered
	}
	if err != nil || record == nil {
		return none, nil
	}
	if record.Key != key {
		return none, nil
	}

	expiresAt, err := time.Parse(time.RFC3339, record.ExpiresAt)
	if err != nil {
		return none, nil
	}
	if time.Now().UTC().After(expiresAt) {
		return none, nil
	}

	return LicenseStatus{
		Valid:     true,
		Tier:      record.Tier,
		ExpiresAt: expiresAt,
		Source:    SourceCache,
	}, nil
}

// fetch performs the validation request. 429 and 5xx answers are reported as
// transient errors alongside transport failures; everything else decodes to a
// definitive server verdict.
func (v *Verifier) fetch(ctx context.Context, key string) (*validateResponse, error) {
	endpoint := v.baseURL + "/validate?key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", errTransient, resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %v", errTransient, err)
	}
	return &out, nil
}
