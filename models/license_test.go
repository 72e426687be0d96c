package models

import (
	"strings"
	"testing"
	"time"
)

func TestValidAt(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		license License
		want    bool
	}{
		{
			name:    "active",
			license: License{ExpiresAt: now.Add(time.Hour)},
			want:    true,
		},
		{
			name:    "expires exactly now",
			license: License{ExpiresAt: now},
			want:    true,
		},
		{
			name:    "expired",
			license: License{ExpiresAt: now.Add(-time.Second)},
			want:    false,
		},
		{
			name:    "revoked",
			license: License{ExpiresAt: now.Add(time.Hour), Revoked: true},
			want:    false,
		},
		{
			name:    "revoked and expired",
			license: License{ExpiresAt: now.Add(-time.Hour), Revoked: true},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.license.ValidAt(now); got != tt.want {
				t.Errorf("ValidAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{name: "expired", expiresAt: now.Add(-time.Hour), want: 0},
		{name: "one second left rounds up", expiresAt: now.Add(time.Second), want: 1},
		{name: "exactly one day", expiresAt: now.Add(24 * time.Hour), want: 1},
		{name: "one day and change rounds up", expiresAt: now.Add(25 * time.Hour), want: 2},
		{name: "one year", expiresAt: now.Add(365 * 24 * time.Hour), want: 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			license := License{ExpiresAt: tt.expiresAt}
			if got := license.DaysRemaining(now); got != tt.want {
				t.Errorf("DaysRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPurchasableTier(t *testing.T) {
	if !PurchasableTier(TierPro) || !PurchasableTier(TierEnterprise) {
		t.Error("Expected pro and enterprise to be purchasable")
	}
	if PurchasableTier(TierFree) {
		t.Error("Free tier must not be purchasable")
	}
	if PurchasableTier("platinum") || PurchasableTier("") {
		t.Error("Unknown tiers must not be purchasable")
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(TierPro)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if !strings.HasPrefix(key, "PRISM-PRO-") {
		t.Errorf("Expected PRISM-PRO- prefix, got '%s'", key)
	}
	if !HasKeyPrefix(key) {
		t.Errorf("Expected key to carry the product prefix: %s", key)
	}

	groups := strings.Split(key, "-")
	if len(groups) != 6 {
		t.Fatalf("Expected 6 dash-separated groups, got %d in '%s'", len(groups), key)
	}
	for _, group := range groups[2:] {
		if len(group) != 4 {
			t.Errorf("Expected 4-character group, got '%s'", group)
		}
		for _, c := range group {
			if !strings.ContainsRune(keyAlphabet, c) {
				t.Errorf("Unexpected character %q in key '%s'", c, key)
			}
		}
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateKey(TierEnterprise)
		if err != nil {
			t.Fatalf("GenerateKey failed: %v", err)
		}
		if seen[key] {
			t.Fatalf("Duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}

func TestHasKeyPrefix(t *testing.T) {
	if HasKeyPrefix("ACME-PRO-AAAA-BBBB-CCCC-DDDD") {
		t.Error("Foreign prefix must be rejected")
	}
	if HasKeyPrefix("prism-pro-aaaa") {
		t.Error("Prefix check is case-sensitive")
	}
	if !HasKeyPrefix("PRISM-PRO-AAAA-BBBB-CCCC-DDDD") {
		t.Error("Product keys must pass the prefix check")
	}
}
