// Package http exposes the broker operations over HTTP. Token
// transport to and from callers is out of scope here; this surface
// only accepts what a caller already holds.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"credbroker/internal/config"
	"credbroker/internal/usecase"
)

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger *slog.Logger

	broker   *usecase.Broker
	issuer   *usecase.TokenIssuer
	requests *usecase.RequestTracker
	ledger   usecase.Ledger

	adminAPIKey string
}

type ServerDeps struct {
	Broker   *usecase.Broker
	Issuer   *usecase.TokenIssuer
	Requests *usecase.RequestTracker
	Ledger   usecase.Ledger
	Logger   *slog.Logger
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:         cfg,
		r:           r,
		logger:      logger,
		broker:      deps.Broker,
		issuer:      deps.Issuer,
		requests:    deps.Requests,
		ledger:      deps.Ledger,
		adminAPIKey: cfg.AdminAPIKey,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/credentials/requests", s.handleCreateRequest)
		v1.GET("/credentials/requests", s.handleListPendingRequests)
		v1.GET("/credentials/requests/:req_id", s.handleGetRequest)
		v1.POST("/credentials/requests/:req_id/status", s.handleSetRequestStatus)

		v1.POST("/tokens", s.handleIssueToken)
		v1.POST("/tokens/inspect", s.handleInspectToken)
		v1.POST("/tokens/revoke", s.handleRevokeToken)

		v1.POST("/secrets/retrieve", s.handleRetrieveSecret)

		v1.POST("/secrets", s.handleStoreSecret)
		v1.GET("/secrets/:vault_id", s.handleListSecrets)
		v1.GET("/secrets/:vault_id/*path", s.handleDescribeSecret)
		v1.DELETE("/secrets/:vault_id/*path", s.handleDeleteSecret)

		v1.GET("/ledger/entries", s.handleLedgerEntries)
		v1.GET("/ledger/verify", s.handleLedgerVerify)
		v1.GET("/ledger/proof/:entry_id", s.handleLedgerProof)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
