package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"credbroker/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createRequestBody struct {
	ReqID       string `json:"req_id" binding:"required"`
	RequesterID string `json:"requester_id" binding:"required"`
	VaultID     string `json:"vault_id" binding:"required"`
	Path        string `json:"path" binding:"required"`
	Reason      string `json:"reason"`
	Emergency   bool   `json:"emergency"`
}

type setStatusBody struct {
	Status string `json:"status" binding:"required"`
}

type issueTokenBody struct {
	Approval domain.OwnerApproval `json:"approval" binding:"required"`
	VaultID  string               `json:"vault_id" binding:"required"`
	Path     string               `json:"path" binding:"required"`
}

type revokeTokenBody struct {
	Nonce string `json:"nonce" binding:"required"`
}

type inspectTokenBody struct {
	Token string `json:"token" binding:"required"`
}

type retrieveBody struct {
	Token   string `json:"token" binding:"required"`
	VaultID string `json:"vault_id" binding:"required"`
	Path    string `json:"path" binding:"required"`
}

type storeSecretBody struct {
	VaultID      string `json:"vault_id" binding:"required"`
	Path         string `json:"path" binding:"required"`
	Secret       string `json:"secret" binding:"required"`
	OwnerID      string `json:"owner_id" binding:"required"`
	CacheAllowed bool   `json:"cache_allowed"`
	TTLSeconds   *int64 `json:"ttl_seconds,omitempty"`
}

func (s *Server) handleCreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req, err := s.requests.Create(c.Request.Context(), domain.CredentialRequest{
		ReqID:       body.ReqID,
		RequesterID: body.RequesterID,
		VaultID:     body.VaultID,
		Path:        body.Path,
		Reason:      body.Reason,
		Emergency:   body.Emergency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *Server) handleGetRequest(c *gin.Context) {
	req, ok := s.requests.Get(c.Param("req_id"))
	if !ok {
		writeError(c, domain.ErrRequestNotFound)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleListPendingRequests(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": s.requests.ListPending()})
}

func (s *Server) handleSetRequestStatus(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var body setStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	status := domain.RequestStatus(strings.ToUpper(body.Status))
	switch status {
	case domain.RequestApproved, domain.RequestRetrieved, domain.RequestDenied, domain.RequestCancelled:
	default:
		writeErrorCode(c, http.StatusBadRequest, "INVALID_STATUS", "status must be APPROVED, RETRIEVED, DENIED or CANCELLED")
		return
	}
	req, err := s.requests.SetStatus(c.Request.Context(), c.Param("req_id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleIssueToken(c *gin.Context) {
	var body issueTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	token, err := s.issuer.IssueToken(c.Request.Context(), body.Approval, body.VaultID, body.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// handleInspectToken decodes a token's claims without validating or
// consuming it, so an operator can see what a token is scoped to.
func (s *Server) handleInspectToken(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var body inspectTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	claims, err := s.issuer.DecodeToken(body.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

func (s *Server) handleRevokeToken(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var body revokeTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if err := s.issuer.RevokeToken(c.Request.Context(), body.Nonce); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (s *Server) handleRetrieveSecret(c *gin.Context) {
	var body retrieveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	result, err := s.broker.RetrieveSecret(c.Request.Context(), body.Token, body.VaultID, body.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStoreSecret(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var body storeSecretBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	entry, err := s.broker.StoreSecret(c.Request.Context(), body.VaultID, body.Path, body.Secret, body.OwnerID, body.CacheAllowed, body.TTLSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proof": entry})
}

func (s *Server) handleListSecrets(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	paths, err := s.broker.ListSecrets(c.Request.Context(), c.Param("vault_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": paths})
}

func (s *Server) handleDescribeSecret(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	path := strings.TrimPrefix(c.Param("path"), "/")
	meta, err := s.broker.DescribeSecret(c.Request.Context(), c.Param("vault_id"), path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) handleDeleteSecret(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	path := strings.TrimPrefix(c.Param("path"), "/")
	entry, err := s.broker.DeleteSecret(c.Request.Context(), c.Param("vault_id"), path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof": entry})
}

func (s *Server) handleLedgerEntries(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	entries, err := s.ledger.Entries(limit, c.Query("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleLedgerVerify(c *gin.Context) {
	ok, err := s.ledger.VerifyChain()
	if err != nil && !errors.Is(err, domain.ErrChainIntegrity) {
		writeError(c, err)
		return
	}
	resp := gin.H{"valid": ok}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLedgerProof(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("entry_id"), 10, 64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ENTRY_ID", "entry id must be an integer")
		return
	}
	proof, err := s.ledger.Proof(entryID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proof)
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusForbidden, "ADMIN_DISABLED", "admin api key not configured")
		return false
	}
	provided := c.GetHeader("X-Admin-API-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin api key")
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidRequestID):
		status, code = http.StatusBadRequest, "INVALID_REQUEST_ID"
	case errors.Is(err, domain.ErrApprovalExpired):
		status, code = http.StatusUnauthorized, "APPROVAL_EXPIRED"
	case errors.Is(err, domain.ErrApprovalInvalid):
		status, code = http.StatusUnauthorized, "APPROVAL_INVALID"
	case errors.Is(err, domain.ErrInvalidSignature):
		status, code = http.StatusUnauthorized, "INVALID_SIGNATURE"
	case errors.Is(err, domain.ErrTokenExpired):
		status, code = http.StatusUnauthorized, "TOKEN_EXPIRED"
	case errors.Is(err, domain.ErrNonceReused):
		status, code = http.StatusUnauthorized, "NONCE_REUSED"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrPathDenied):
		status, code = http.StatusForbidden, "PATH_DENIED"
	case errors.Is(err, domain.ErrSecretNotFound):
		status, code = http.StatusNotFound, "SECRET_NOT_FOUND"
	case errors.Is(err, domain.ErrRequestNotFound):
		status, code = http.StatusNotFound, "REQUEST_NOT_FOUND"
	case errors.Is(err, domain.ErrAuthentication):
		status, code = http.StatusBadGateway, "ADAPTER_AUTHENTICATION"
	case errors.Is(err, domain.ErrConnection):
		status, code = http.StatusBadGateway, "ADAPTER_CONNECTION"
	case errors.Is(err, domain.ErrRetrieval):
		status, code = http.StatusBadGateway, "ADAPTER_RETRIEVAL"
	case errors.Is(err, domain.ErrChainIntegrity):
		status, code = http.StatusInternalServerError, "CHAIN_INTEGRITY"
	case errors.Is(err, domain.ErrStorage):
		status, code = http.StatusInternalServerError, "STORAGE"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
