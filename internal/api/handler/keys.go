package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/response"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

const keyPrefixLen = 8

var validScopes = map[string]struct{}{
	"read":  {},
	"write": {},
	"admin": {},
}

// Keys serves the admin API-key management endpoints.
type Keys struct {
	store store.Store
}

// NewKeys creates the key management handler.
func NewKeys(st store.Store) *Keys {
	return &Keys{store: st}
}

type createKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type createKeyResponse struct {
	Key    *models.APIKey `json:"key"`
	RawKey string         `json:"raw_key"`
}

// Create mints a new API key for the caller's tenant. The raw key appears in
// this response only; the store keeps just the bcrypt hash and lookup prefix.
func (h *Keys) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
		return
	}
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Key name is required", nil)
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{"read"}
	}
	for _, scope := range req.Scopes {
		if _, valid := validScopes[scope]; !valid {
			response.Error(w, http.StatusBadRequest, "INVALID_SCOPE",
				fmt.Sprintf("Unknown scope %q", scope), nil)
			return
		}
	}

	rawKey, err := generateRawKey()
	if err != nil {
		slog.Error("generate api key", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to generate key", nil)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("hash api key", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to generate key", nil)
		return
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      req.Name,
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:keyPrefixLen],
		Scopes:    req.Scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		slog.Error("create api key", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to create key", nil)
		return
	}

	response.Created(w, createKeyResponse{Key: key, RawKey: rawKey})
}

// List returns the tenant's API keys, hashes excluded.
func (h *Keys) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}

	keys, err := h.store.ListAPIKeys(r.Context(), tenantID)
	if err != nil {
		slog.Error("list api keys", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to list keys", nil)
		return
	}

	response.JSON(w, keys)
}

// Revoke soft-deletes an API key.
func (h *Keys) Revoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}

	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ID", "Invalid key id", nil)
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), keyID, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found", nil)
			return
		}
		slog.Error("revoke api key", "key_id", keyID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to revoke key", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func generateRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "pk_" + hex.EncodeToString(buf), nil
}
