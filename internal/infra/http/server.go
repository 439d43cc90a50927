// Package http exposes the trust core over a thin gin surface: credential
// issuance and revocation for administrators, public verification, the
// published status list, and the session logout path.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/config"
	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/session"
	"github.com/dhis2/certification-app-sub003/internal/usecase"
)

// StatusStore is the revocation list as the HTTP layer sees it: allocation
// and revocation for issuance, plus the published encoded form.
type StatusStore interface {
	usecase.StatusList
	EncodedList(ctx context.Context) (string, error)
}

// KeyRotator bumps the active signing key version. Only the local signer
// supports it; transit-managed keys rotate inside the secrets service.
type KeyRotator interface {
	Rotate() (domain.KeyMaterial, error)
}

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger *zap.Logger

	issueUC  *usecase.IssueCredential
	verifyUC *usecase.VerifyCredential

	signer    domain.Signer
	rotator   KeyRotator
	status    StatusStore
	audit     usecase.AuditRepository
	integrity *usecase.AuditIntegrity
	blacklist usecase.TokenBlacklist
	sessions  *session.RefreshSessions

	adminAPIKey string
	jwtSecret   []byte

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Issue     *usecase.IssueCredential
	Verify    *usecase.VerifyCredential
	Signer    domain.Signer
	Rotator   KeyRotator
	Status    StatusStore
	Audit     usecase.AuditRepository
	Integrity *usecase.AuditIntegrity
	Blacklist usecase.TokenBlacklist
	Sessions  *session.RefreshSessions

	RateLimiter domain.RateLimiter
	Logger      *zap.Logger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:               cfg,
		r:                 r,
		logger:            logger,
		issueUC:           deps.Issue,
		verifyUC:          deps.Verify,
		signer:            deps.Signer,
		rotator:           deps.Rotator,
		status:            deps.Status,
		audit:             deps.Audit,
		integrity:         deps.Integrity,
		blacklist:         deps.Blacklist,
		sessions:          deps.Sessions,
		adminAPIKey:       cfg.AdminAPIKey,
		jwtSecret:         []byte(cfg.JWTSecret),
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)

	v1 := s.r.Group("/v1")
	{
		v1.GET("/verify/:code", s.handleVerify)
		v1.GET("/status/revocation", s.handleStatusList)
		v1.GET("/keys", s.handlePublicKey)

		v1.POST("/credentials", s.handleIssueCredential)
		v1.POST("/credentials/:code/revoke", s.handleRevokeCredential)
		v1.POST("/keys/rotate", s.handleRotateKey)
		v1.GET("/audit/verify", s.handleAuditVerify)

		v1.POST("/auth/logout", s.handleLogout)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run(addr string) error {
	return s.r.Run(addr)
}
