package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eco-ledger/config"
	"eco-ledger/database"
	"eco-ledger/database/models"
	"eco-ledger/ledger"
	"eco-ledger/net"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server

	ledger *ledger.Ledger
	logger *zap.SugaredLogger
}

func New(l *ledger.Ledger, cfg *config.ServerConfig) *Server {
	router := gin.Default()
	router.Use(cors.Default())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HttpPort),
		Handler: router,
	}

	s := &Server{
		router: router,
		srv:    srv,
		ledger: l,
		logger: zap.S().Named("[api]"),
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.POST("/ledger/submit", s.submitReport)
	s.router.GET("/ledger/query/:report_id", s.queryReport)
	s.router.POST("/ledger/issue", s.issueCredits)
	s.router.POST("/ledger/transfer", s.transferCredits)
	s.router.GET("/ledger/credits", s.listCredits)
	s.router.GET("/ledger/credits/:credit_id", s.creditDetail)
	s.router.GET("/ledger/history/:org_id", s.organizationHistory)
	s.router.GET("/ledger/stats", s.chainStats)
	s.router.GET("/ledger/blockchain", s.blockchainInfo)
}

func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
}

func (s *Server) Stop() {
	if err := s.srv.Shutdown(context.Background()); err != nil {
		panic(err)
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	stats, err := s.ledger.GetChainStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"service":          "EcoLedger Blockchain Simulation API",
		"blockchain_stats": stats,
	})
}

type submitRequest struct {
	NgoID            string                      `json:"ngo_id"`
	ProjectID        string                      `json:"project_id"`
	VerificationData *models.VerificationPayload `json:"verification_data"`
}

func (s *Server) submitReport(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}

	result, err := s.ledger.Submit(req.NgoID, req.ProjectID, req.VerificationData)
	if err != nil {
		s.renderError(c, err)
		return
	}

	go net.ReportLedgerEvent("verification_submitted", result)

	c.JSON(http.StatusOK, gin.H{
		"submitted":      true,
		"report_id":      result.ReportID,
		"transaction_id": result.TransactionID,
		"block_number":   result.BlockNumber,
		"block_hash":     result.BlockHash,
		"payload_hash":   result.PayloadHash,
		"timestamp":      result.Timestamp,
	})
}

func (s *Server) queryReport(c *gin.Context) {
	report, err := s.ledger.GetReport(c.Param("report_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"report": report,
	})
}

type issueRequest struct {
	NgoID          string   `json:"ngo_id"`
	ReportID       string   `json:"report_id"`
	Amount         float64  `json:"credits_amount"`
	PricePerCredit *float64 `json:"price_per_credit"`
}

func (s *Server) issueCredits(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}

	result, err := s.ledger.Issue(req.NgoID, req.ReportID, req.Amount, req.PricePerCredit)
	if err != nil {
		s.renderError(c, err)
		return
	}

	go net.ReportLedgerEvent("credits_issued", result)

	c.JSON(http.StatusOK, gin.H{
		"issued":         true,
		"credit_id":      result.CreditID,
		"transaction_id": result.TransactionID,
		"block_number":   result.BlockNumber,
		"block_hash":     result.BlockHash,
		"credits_issued": result.Amount,
		"owner":          result.Owner,
		"issuance_date":  result.IssuedAt,
	})
}

type transferRequest struct {
	CreditID  string   `json:"credit_id"`
	FromOwner string   `json:"from_owner"`
	ToOwner   string   `json:"to_owner"`
	Amount    *float64 `json:"credits_amount"`
	Price     *float64 `json:"transfer_price"`
}

func (s *Server) transferCredits(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
		return
	}

	result, err := s.ledger.Transfer(req.CreditID, req.FromOwner, req.ToOwner, req.Amount, req.Price)
	if err != nil {
		s.renderError(c, err)
		return
	}

	go net.ReportLedgerEvent("credits_transferred", result)

	c.JSON(http.StatusOK, gin.H{
		"transferred":         true,
		"transfer_id":         result.TransferID,
		"transaction_id":      result.TransactionID,
		"block_number":        result.BlockNumber,
		"block_hash":          result.BlockHash,
		"credit_id":           result.CreditID,
		"new_credit_id":       result.NewCreditID,
		"from_owner":          result.FromOwner,
		"to_owner":            result.ToOwner,
		"credits_transferred": result.Amount,
		"transfer_date":       result.TransferredAt,
	})
}

func (s *Server) listCredits(c *gin.Context) {
	limit := 50
	if raw, ok := c.GetQuery("limit"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	credits, err := s.ledger.ListCredits(c.Query("owner"), c.Query("status"), limit)
	if err != nil {
		s.renderError(c, err)
		return
	}

	var total float64
	for _, credit := range credits {
		total += credit.Amount
	}

	c.JSON(http.StatusOK, gin.H{
		"credits":       credits,
		"total_count":   len(credits),
		"total_credits": total,
	})
}

func (s *Server) creditDetail(c *gin.Context) {
	detail, err := s.ledger.GetCredit(c.Param("credit_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"credit": detail,
	})
}

func (s *Server) organizationHistory(c *gin.Context) {
	orgID := c.Param("org_id")
	history, err := s.ledger.OrganizationHistory(orgID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "success",
		"organization_id":     orgID,
		"transaction_history": history,
	})
}

func (s *Server) chainStats(c *gin.Context) {
	stats, err := s.ledger.GetChainStats()
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"blockchain_stats": stats,
	})
}

func (s *Server) blockchainInfo(c *gin.Context) {
	stats, err := s.ledger.GetChainStats()
	if err != nil {
		s.renderError(c, err)
		return
	}
	blocks, err := s.ledger.RecentBlocks(10)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"blockchain_stats": stats,
		"recent_blocks":    blocks,
		"system_info": gin.H{
			"network":   "EcoLedger Simulation",
			"consensus": "Simulated Proof of Authority",
		},
	})
}

func (s *Server) renderError(c *gin.Context, err error) {
	var validationErr *ledger.ValidationError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrOwnershipMismatch):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrReportNotFound), errors.Is(err, ledger.ErrCreditNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrDuplicateBlock), errors.Is(err, database.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Errorf("Request failed: [%s]", err.Error())
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
