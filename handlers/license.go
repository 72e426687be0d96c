package handlers

import (
	"errors"
	"net/http"
	"time"

	"prism.app/licensing/internal/logger"
	"prism.app/licensing/internal/signing"
	"prism.app/licensing/models"
	"prism.app/licensing/storage"
)

type ValidateResponse struct {
	Valid         bool   `json:"valid"`
	Tier          string `json:"tier,omitempty"`
	Email         string `json:"email,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
	Signature     string `json:"signature,omitempty"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
}

func writeInvalid(w http.ResponseWriter, status int, code, reason string) {
	respondJSON(w, status, ValidateResponse{
		Valid: false,
		Error: reason,
		Code:  code,
	})
}

// ValidateLicense is the public endpoint. Order matters: the rate limiter
// runs before any store lookup, and the key-format precheck rejects garbage
// before the store is touched either.
func (s *Server) ValidateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.limiter.Allow(ctx, clientIP(r)) {
		writeInvalid(w, http.StatusTooManyRequests, models.CodeRateLimited, "Too many requests")
		return
	}

	key := r.URL.Query().Get("key")
	if !models.HasKeyPrefix(key) {
		writeInvalid(w, http.StatusBadRequest, models.CodeInvalidKey, "Invalid license key format")
		return
	}

	license, err := s.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		writeInvalid(w, http.StatusNotFound, models.CodeKeyNotFound, "Invalid license key")
		return
	}
	if err != nil {
		logger.Error("License lookup failed", map[string]interface{}{
			"license_key": key,
			"error":       err.Error(),
		})
		writeInvalid(w, http.StatusInternalServerError, models.CodeInternal, "Internal server error")
		return
	}

	now := time.Now().UTC()
	if license.Revoked {
		writeInvalid(w, http.StatusForbidden, models.CodeKeyRevoked, "revoked")
		return
	}
	if license.ExpiredAt(now) {
		writeInvalid(w, http.StatusForbidden, models.CodeKeyExpired, "expired")
		return
	}

	message := signing.CanonicalMessage(license.Key, license.ExpiresAt, license.Tier)
	signature, err := signing.Sign(message, s.signingKey)
	if err != nil {
		// A success response must never leave unsigned.
		logger.Error("Failed to sign validation response", map[string]interface{}{
			"license_key": key,
			"error":       err.Error(),
		})
		writeInvalid(w, http.StatusInternalServerError, models.CodeInternal, "Internal server error")
		return
	}

	logger.Info("License validated", map[string]interface{}{
		"license_key": key,
		"tier":        license.Tier,
	})

	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:         true,
		Tier:          license.Tier,
		Email:         license.Email,
		ExpiresAt:     license.ExpiresAt.UTC().Format(time.RFC3339),
		DaysRemaining: license.DaysRemaining(now),
		Signature:     signature,
	})
}
