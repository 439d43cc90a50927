package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type issueRequest struct {
	Subject map[string]any `json:"subject"`
	Code    string         `json:"code"`
}

type issueResponse struct {
	Code       string            `json:"code"`
	Credential domain.Credential `json:"credential"`
	KeyVersion int               `json:"key_version"`
}

type verifyResponse struct {
	Found          bool               `json:"found"`
	NotRevoked     bool               `json:"not_revoked"`
	NotExpired     bool               `json:"not_expired"`
	IntegrityValid bool               `json:"integrity_valid"`
	SignatureValid bool               `json:"signature_valid"`
	Valid          bool               `json:"valid"`
	Credential     *domain.Credential `json:"credential,omitempty"`
}

type statusListResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	StatusPurpose string `json:"statusPurpose"`
	EncodedList   string `json:"encodedList"`
}

type publicKeyResponse struct {
	PublicKeyMultibase string `json:"publicKeyMultibase"`
	KeyVersion         int    `json:"keyVersion"`
	VerificationMethod string `json:"verificationMethod"`
}

type auditVerifyResponse struct {
	Checked  int                        `json:"checked"`
	Invalid  int                        `json:"invalid"`
	Failures []domain.AuditBatchFailure `json:"failures,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	signerMode := "uninitialized"
	if s.signer != nil && s.signer.Initialized() {
		signerMode = s.cfg.SignerMode
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"signer": signerMode,
	})
}

func (s *Server) handleIssueCredential(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if len(req.Subject) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "SUBJECT_REQUIRED", "credential subject is required")
		return
	}

	index, err := s.status.Allocate(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	issued, err := s.issueUC.Execute(c.Request.Context(), usecase.IssueRequest{
		Subject:         req.Subject,
		StatusListIndex: index,
		Code:            req.Code,
	})
	if err != nil {
		if reclaimErr := s.status.Reclaim(c.Request.Context(), index); reclaimErr != nil {
			s.logger.Warn("status list index not reclaimed",
				zap.Int("index", index), zap.Error(reclaimErr))
		}
		writeError(c, err)
		return
	}

	code := req.Code
	if code == "" {
		code = issued.Credential.ID
	}
	s.recordAudit(c, domain.AuditEventCredentialIssued, "issue", "credential",
		issued.Credential.ID, nil, issued.Credential)

	c.JSON(http.StatusCreated, issueResponse{
		Code:       code,
		Credential: issued.Credential,
		KeyVersion: issued.KeyVersion,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	if !s.enforceRateLimit(c, "verify") {
		return
	}
	report, cred, err := s.verifyUC.Execute(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.logger.Error("verification failed", zap.Error(err))
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "verification unavailable")
		return
	}
	resp := verifyResponse{
		Found:          report.Found,
		NotRevoked:     report.NotRevoked,
		NotExpired:     report.NotExpired,
		IntegrityValid: report.IntegrityValid,
		SignatureValid: report.SignatureValid,
		Valid:          report.Valid(),
	}
	if report.Found {
		resp.Credential = cred
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRevokeCredential(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	code := c.Param("code")
	stored, err := s.issueUC.Credentials.GetByCode(c.Request.Context(), code)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.status.Revoke(c.Request.Context(), stored.StatusListIndex); err != nil {
		writeError(c, err)
		return
	}
	s.recordAudit(c, domain.AuditEventCredentialRevoked, "revoke", "credential",
		stored.ID, nil, gin.H{"status_list_index": stored.StatusListIndex})

	c.JSON(http.StatusOK, gin.H{"revoked": true, "code": code})
}

func (s *Server) handleStatusList(c *gin.Context) {
	encoded, err := s.status.EncodedList(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusListResponse{
		ID:            s.cfg.BaseURL + "/v1/status/revocation",
		Type:          "BitstringStatusList",
		StatusPurpose: domain.StatusPurposeRevocation,
		EncodedList:   encoded,
	})
}

func (s *Server) handlePublicKey(c *gin.Context) {
	if s.signer == nil || !s.signer.Initialized() {
		writeError(c, domain.ErrSignerUninitialized)
		return
	}
	version := s.signer.KeyVersion()
	c.JSON(http.StatusOK, publicKeyResponse{
		PublicKeyMultibase: s.signer.PublicKeyMultibase(),
		KeyVersion:         version,
		VerificationMethod: domain.VerificationMethod(s.cfg.IssuerID, version),
	})
}

func (s *Server) handleRotateKey(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	if s.rotator == nil {
		writeErrorCode(c, http.StatusConflict, "ROTATION_EXTERNAL",
			"key rotation is managed by the transit service")
		return
	}
	material, err := s.rotator.Rotate()
	if err != nil {
		writeError(c, err)
		return
	}
	s.recordAudit(c, domain.AuditEventKeyRotated, "rotate", "signing_key",
		strconv.Itoa(material.Version), nil, gin.H{"version": material.Version})

	c.JSON(http.StatusOK, publicKeyResponse{
		PublicKeyMultibase: material.PublicKeyMultibase,
		KeyVersion:         material.Version,
		VerificationMethod: domain.VerificationMethod(s.cfg.IssuerID, material.Version),
	})
}

func (s *Server) handleAuditVerify(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	entries, err := s.audit.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	report := s.integrity.VerifyBatch(c.Request.Context(), entries)
	if report.Invalid > 0 {
		s.logger.Error("audit chain verification found invalid entries",
			zap.Int("checked", report.Checked), zap.Int("invalid", report.Invalid))
	}
	c.JSON(http.StatusOK, auditVerifyResponse{
		Checked:  report.Checked,
		Invalid:  report.Invalid,
		Failures: report.Failures,
	})
}

type logoutRequest struct {
	RefreshTokenID string `json:"refresh_token_id"`
}

func (s *Server) handleLogout(c *gin.Context) {
	claims, ok := s.requireSession(c)
	if !ok {
		return
	}
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	ttl := time.Until(claims.expiresAt)
	if err := s.blacklist.Blacklist(c.Request.Context(), claims.jti, claims.subject, ttl); err != nil {
		// Revocation must not silently no-op. The client retries; the token
		// stays live until the store accepts the write.
		s.logger.Error("logout blacklist write failed",
			zap.String("user_id", claims.subject), zap.Error(err))
		writeError(c, domain.ErrRevocationUnavailable)
		return
	}
	eventType := domain.AuditEventLogout
	action := "logout"
	if c.Query("all") == "true" {
		eventType = domain.AuditEventSessionRevoked
		action = "invalidate_all"
	}
	if s.sessions != nil {
		var err error
		switch {
		case c.Query("all") == "true":
			err = s.sessions.InvalidateAll(c.Request.Context(), claims.subject)
		case req.RefreshTokenID != "":
			err = s.sessions.Remove(c.Request.Context(), claims.subject, req.RefreshTokenID)
		}
		if err != nil {
			s.logger.Error("session invalidation failed",
				zap.String("user_id", claims.subject), zap.Error(err))
			writeError(c, domain.ErrRevocationUnavailable)
			return
		}
	}
	s.recordAudit(c, eventType, action, "session", claims.subject, nil, nil)
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// recordAudit appends to the audit chain. Failures are logged and surfaced to
// operators through chain verification, not bounced to the client after the
// primary action already succeeded.
func (s *Server) recordAudit(c *gin.Context, eventType domain.AuditEventType, action, entityType, entityID string, oldValues, newValues any) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		EventType:  eventType,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID(c),
		ActorIP:    c.ClientIP(),
	}
	entry.OldValues = marshalValues(oldValues)
	entry.NewValues = marshalValues(newValues)
	if _, err := s.audit.Append(c.Request.Context(), entry); err != nil {
		s.logger.Error("audit append failed",
			zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrSignerUninitialized):
		status, code = http.StatusServiceUnavailable, "SIGNER_UNINITIALIZED"
	case errors.Is(err, domain.ErrStatusListFull):
		status, code = http.StatusConflict, "STATUS_LIST_FULL"
	case errors.Is(err, domain.ErrBreakerOpen):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	case errors.Is(err, domain.ErrRevocationUnavailable):
		status, code = http.StatusServiceUnavailable, "REVOCATION_UNAVAILABLE"
	case errors.Is(err, domain.ErrAuditKeyMissing):
		status, code = http.StatusServiceUnavailable, "AUDIT_KEY_MISSING"
	case errors.Is(err, domain.ErrCanonicalization):
		status, code = http.StatusBadRequest, "CANONICALIZATION_FAILED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
