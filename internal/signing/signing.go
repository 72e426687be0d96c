// Package signing holds the asymmetric primitives of the license protocol:
// RSASSA-PKCS1-v1.5 over SHA-256 with a 2048-bit modulus. The authority signs
// the canonical message for every valid license; clients verify it against
// the embedded public key.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"
)

// CanonicalMessage builds the exact string that is signed and verified for a
// validation response: key|expires_at|tier. The field order is a wire
// contract; changing it breaks every deployed verifier.
func CanonicalMessage(key string, expiresAt time.Time, tier string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s", key, expiresAt.UTC().Format(time.RFC3339), tier))
}

// Sign returns the base64 signature of message. Malformed key material is an
// error, never an empty signature: an unsigned success response must not
// leave the authority.
func Sign(message []byte, privateKey *rsa.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("signing key not configured")
	}

	digest := sha256.Sum256(message)
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// Verify reports whether signature is a valid base64 PKCS1v15 signature of
// message. An empty or undecodable signature is untrusted, never auto-valid.
func Verify(message []byte, signature string, publicKey *rsa.PublicKey) bool {
	if publicKey == nil || signature == "" {
		return false
	}

	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], raw) == nil
}

// LoadPrivateKey parses a PEM-encoded RSA private key (PKCS#1 or PKCS#8).
func LoadPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key data")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// ParsePublicKey parses a PEM-encoded RSA public key (PKIX or PKCS#1).
func ParsePublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key data")
	}

	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA")
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
