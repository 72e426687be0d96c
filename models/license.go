package models

import (
	"time"
)

const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// SchemaVersion is stored with every record so future field additions can be
// migrated instead of guessed at read time.
const SchemaVersion = 1

type License struct {
	Key           string            `json:"key"`
	Tier          string            `json:"tier"`
	Email         string            `json:"email"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Revoked       bool              `json:"revoked"`
	MachineIDs    []string          `json:"machine_ids,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	SchemaVersion int               `json:"schema_version"`
}

// ValidAt reports whether the license is usable at t. Validity is always
// derived, never stored: a record is valid iff it is not revoked and t is not
// past its expiry.
func (l *License) ValidAt(t time.Time) bool {
	return !l.Revoked && !t.After(l.ExpiresAt)
}

func (l *License) ExpiredAt(t time.Time) bool {
	return t.After(l.ExpiresAt)
}

// DaysRemaining returns the number of whole or partial days until expiry,
// rounded up. A license expiring in one second still has one day remaining.
func (l *License) DaysRemaining(now time.Time) int {
	remaining := l.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// PurchasableTier reports whether tier is one the authority issues keys for.
// Free tier exists only as the absence of a license.
func PurchasableTier(tier string) bool {
	return tier == TierPro || tier == TierEnterprise
}
