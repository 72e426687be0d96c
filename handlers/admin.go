package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prism.app/licensing/internal/logger"
	"prism.app/licensing/models"
	"prism.app/licensing/storage"
)

const defaultListLimit = 50

type CreateRequest struct {
	Email    string            `json:"email"`
	Tier     string            `json:"tier"`
	Months   int               `json:"months"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type CreateResponse struct {
	Success bool            `json:"success"`
	Key     string          `json:"key,omitempty"`
	License *models.License `json:"license,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

type RevokeRequest struct {
	Key string `json:"key"`
}

type RevokeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

type ListResponse struct {
	Licenses []*models.License `json:"licenses"`
	Cursor   string            `json:"cursor,omitempty"`
	Complete bool              `json:"complete"`
}

type LookupResponse struct {
	Licenses []*models.License `json:"licenses"`
}

// requireAdmin guards every administrative endpoint: the bearer token must
// match the shared secret byte-for-byte before anything else is processed.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminSecret)) != 1 {
			respondJSON(w, http.StatusUnauthorized, RevokeResponse{
				Success: false,
				Error:   "Unauthorized",
				Code:    models.CodeUnauthorized,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) CreateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, CreateResponse{
			Success: false, Error: "Invalid JSON body", Code: models.CodeBadRequest,
		})
		return
	}

	if req.Email == "" {
		respondJSON(w, http.StatusBadRequest, CreateResponse{
			Success: false, Error: "email is required", Code: models.CodeBadRequest,
		})
		return
	}
	if !models.PurchasableTier(req.Tier) {
		respondJSON(w, http.StatusBadRequest, CreateResponse{
			Success: false, Error: "tier must be 'pro' or 'enterprise'", Code: models.CodeBadRequest,
		})
		return
	}
	if req.Months <= 0 {
		respondJSON(w, http.StatusBadRequest, CreateResponse{
			Success: false, Error: "months must be positive", Code: models.CodeBadRequest,
		})
		return
	}

	key, err := models.GenerateKey(req.Tier)
	if err != nil {
		logger.Error("Failed to generate license key", map[string]interface{}{"error": err.Error()})
		respondJSON(w, http.StatusInternalServerError, CreateResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	now := time.Now().UTC()
	license := &models.License{
		Key:           key,
		Tier:          req.Tier,
		Email:         req.Email,
		CreatedAt:     now,
		ExpiresAt:     now.AddDate(0, req.Months, 0),
		Revoked:       false,
		Metadata:      req.Metadata,
		SchemaVersion: models.SchemaVersion,
	}

	if err := s.storage.Put(ctx, key, license); err != nil {
		logger.Error("Failed to save license", map[string]interface{}{
			"license_key": key,
			"error":       err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, CreateResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	if err := s.storage.AppendEmailIndex(ctx, req.Email, key); err != nil {
		logger.Error("Failed to index license", map[string]interface{}{
			"license_key": key,
			"email":       req.Email,
			"error":       err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, CreateResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	if s.email != nil {
		// Delivery failure is not a create failure; the key is already in
		// the response and recoverable via lookup.
		if err := s.email.SendLicenseKey(req.Email, key, req.Tier); err != nil {
			logger.Warn("Failed to email license key", map[string]interface{}{
				"email": req.Email,
				"error": err.Error(),
			})
		}
	}

	logger.Info("License created", map[string]interface{}{
		"license_key": key,
		"tier":        req.Tier,
		"email":       req.Email,
		"months":      req.Months,
	})

	respondJSON(w, http.StatusCreated, CreateResponse{
		Success: true,
		Key:     key,
		License: license,
	})
}

// RevokeLicense flips the one-way revoked flag. Revoking an already-revoked
// key succeeds again: the operation is idempotent.
func (s *Server) RevokeLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, RevokeResponse{
			Success: false, Error: "Invalid JSON body", Code: models.CodeBadRequest,
		})
		return
	}
	if req.Key == "" {
		respondJSON(w, http.StatusBadRequest, RevokeResponse{
			Success: false, Error: "key is required", Code: models.CodeBadRequest,
		})
		return
	}

	license, err := s.storage.Get(ctx, req.Key)
	if errors.Is(err, storage.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, RevokeResponse{
			Success: false, Error: "Invalid license key", Code: models.CodeKeyNotFound,
		})
		return
	}
	if err != nil {
		logger.Error("License lookup failed", map[string]interface{}{
			"license_key": req.Key,
			"error":       err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, RevokeResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	license.Revoked = true
	if err := s.storage.Put(ctx, req.Key, license); err != nil {
		logger.Error("Failed to revoke license", map[string]interface{}{
			"license_key": req.Key,
			"error":       err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, RevokeResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	logger.Info("License revoked", map[string]interface{}{"license_key": req.Key})

	respondJSON(w, http.StatusOK, RevokeResponse{
		Success: true,
		Message: "License revoked",
	})
}

func (s *Server) ListLicenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondJSON(w, http.StatusBadRequest, RevokeResponse{
				Success: false, Error: "limit must be a positive integer", Code: models.CodeBadRequest,
			})
			return
		}
		limit = parsed
	}
	cursor := r.URL.Query().Get("cursor")

	// Listing under the key prefix keeps email-index entries out of the page.
	items, nextCursor, complete, err := s.storage.ListByPrefix(ctx, models.KeyPrefix, cursor, limit)
	if err != nil {
		logger.Error("Failed to list licenses", map[string]interface{}{"error": err.Error()})
		respondJSON(w, http.StatusInternalServerError, RevokeResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	if items == nil {
		items = []*models.License{}
	}
	respondJSON(w, http.StatusOK, ListResponse{
		Licenses: items,
		Cursor:   nextCursor,
		Complete: complete,
	})
}

func (s *Server) LookupLicenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	emailAddr := r.URL.Query().Get("email")
	if emailAddr == "" {
		respondJSON(w, http.StatusBadRequest, RevokeResponse{
			Success: false, Error: "email is required", Code: models.CodeBadRequest,
		})
		return
	}

	keys, err := s.storage.GetEmailIndex(ctx, emailAddr)
	if err != nil {
		logger.Error("Failed to read email index", map[string]interface{}{
			"email": emailAddr,
			"error": err.Error(),
		})
		respondJSON(w, http.StatusInternalServerError, RevokeResponse{
			Success: false, Error: "Internal server error", Code: models.CodeInternal,
		})
		return
	}

	licenses := make([]*models.License, 0, len(keys))
	for _, key := range keys {
		license, err := s.storage.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			// An index entry without a record is skipped, not an error.
			continue
		}
		if err != nil {
			logger.Error("Failed to fetch indexed license", map[string]interface{}{
				"license_key": key,
				"error":       err.Error(),
			})
			respondJSON(w, http.StatusInternalServerError, RevokeResponse{
				Success: false, Error: "Internal server error", Code: models.CodeInternal,
			})
			return
		}
		licenses = append(licenses, license)
	}

	respondJSON(w, http.StatusOK, LookupResponse{Licenses: licenses})
}
