package models

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// KeyPrefix is the cheap pre-validation marker. Anything not starting with it
// is rejected before the store is consulted.
const KeyPrefix = "PRISM-"

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	keyGroups    = 4
	keyGroupSize = 4
)

// GenerateKey produces a structurally well-formed license key:
// PRISM-{TIER}-XXXX-XXXX-XXXX-XXXX with four random uppercase-alphanumeric
// groups. Global uniqueness rides on the 16 characters of entropy and is not
// actively checked.
func GenerateKey(tier string) (string, error) {
	groups := make([]string, 0, keyGroups)
	for i := 0; i < keyGroups; i++ {
		group, err := randomGroup(keyGroupSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate key segment: %w", err)
		}
		groups = append(groups, group)
	}

	return KeyPrefix + strings.ToUpper(tier) + "-" + strings.Join(groups, "-"), nil
}

func randomGroup(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = keyAlphabet[int(buf[i])%len(keyAlphabet)]
	}
	return string(buf), nil
}

// HasKeyPrefix is the format precheck used by the validate endpoint.
func HasKeyPrefix(key string) bool {
	return strings.HasPrefix(key, KeyPrefix)
}
