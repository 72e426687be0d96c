package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generate test key")
	return key
}

func TestSignVerify_RoundTrip(t *testing.T) {
	key := testKey(t)
	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", time.Now().Add(24*time.Hour), "pro")

	signature, err := Sign(message, key)
	require.NoError(t, err)
	require.NotEmpty(t, signature)

	assert.True(t, Verify(message, signature, &key.PublicKey))
}

func TestVerify_TamperedSignature(t *testing.T) {
	key := testKey(t)
	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", time.Now().Add(24*time.Hour), "pro")

	signature, err := Sign(message, key)
	require.NoError(t, err)

	// Flip one character of the signature.
	tampered := []byte(signature)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	assert.False(t, Verify(message, string(tampered), &key.PublicKey))
}

func TestVerify_TamperedMessage(t *testing.T) {
	key := testKey(t)
	expiresAt := time.Now().Add(24 * time.Hour)
	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", expiresAt, "pro")

	signature, err := Sign(message, key)
	require.NoError(t, err)

	// Same key, extended expiry: signature must no longer verify.
	extended := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", expiresAt.Add(365*24*time.Hour), "pro")
	assert.False(t, Verify(extended, signature, &key.PublicKey))
}

func TestVerify_AbsentSignature(t *testing.T) {
	key := testKey(t)
	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", time.Now(), "pro")

	assert.False(t, Verify(message, "", &key.PublicKey), "absent signature is untrusted, not auto-valid")
	assert.False(t, Verify(message, "not base64!!!", &key.PublicKey))
}

func TestVerify_WrongKey(t *testing.T) {
	signer := testKey(t)
	other := testKey(t)
	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", time.Now().Add(time.Hour), "pro")

	signature, err := Sign(message, signer)
	require.NoError(t, err)

	assert.False(t, Verify(message, signature, &other.PublicKey))
}

func TestSign_NilKey(t *testing.T) {
	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", time.Now(), "pro")

	signature, err := Sign(message, nil)
	assert.Error(t, err)
	assert.Empty(t, signature)
}

func TestCanonicalMessage_FieldOrder(t *testing.T) {
	expiresAt := time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC)
	message := CanonicalMessage("PRISM-ENTERPRISE-AAAA-BBBB-CCCC-DDDD", expiresAt, "enterprise")

	assert.Equal(t, "PRISM-ENTERPRISE-AAAA-BBBB-CCCC-DDDD|2027-03-01T12:00:00Z|enterprise", string(message))
}

func TestKeyPEMRoundTrip(t *testing.T) {
	key := testKey(t)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	loadedPriv, err := LoadPrivateKey(privPEM)
	require.NoError(t, err)
	loadedPub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)

	message := CanonicalMessage("PRISM-PRO-AAAA-BBBB-CCCC-DDDD", time.Now().Add(time.Hour), "pro")
	signature, err := Sign(message, loadedPriv)
	require.NoError(t, err)
	assert.True(t, Verify(message, signature, loadedPub))
}

func TestLoadPrivateKey_Malformed(t *testing.T) {
	_, err := LoadPrivateKey([]byte("not a pem"))
	assert.Error(t, err)

	_, err = ParsePublicKey([]byte("not a pem"))
	assert.Error(t, err)
}
