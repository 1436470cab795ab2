// Package server exposes the orchestrator's composite operations and the
// message bus's introspection surface over HTTP. Every operation endpoint
// responds with the uniform result envelope; a failed operation is still a
// 200 with success false, since the envelope is the API contract. Only a
// request body the server cannot parse produces a 400.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/orchestrator"
)

// Options configures the Server.
type Options struct {
	// Logger receives request-level diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// Address is the listen address. Defaults to ":8080".
	Address string
}

// Server is the HTTP front end over the orchestrator and bus.
type Server struct {
	engine  *gin.Engine
	orch    *orchestrator.Orchestrator
	bus     *bus.Bus
	logger  logging.Logger
	address string
	httpSrv *http.Server
}

// New constructs the server and registers all routes.
func New(orch *orchestrator.Orchestrator, b *bus.Bus, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Address: ":8080",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:  engine,
		orch:    orch,
		bus:     b,
		logger:  opts.Logger,
		address: opts.Address,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/portfolio/risk", s.handleAssessRisk)
		v1.POST("/portfolio/hedge", s.handleHedge)
		v1.POST("/portfolio/analysis", s.handleAnalyze)
		v1.POST("/portfolio/report", s.handleReport)
		v1.POST("/portfolio/action", s.handleDecide)
		v1.POST("/settlements", s.handleSettlement)

		v1.GET("/bus/history", s.handleHistory)
		v1.GET("/bus/stats", s.handleStats)
		v1.GET("/bus/agents/:id/messages", s.handleAgentMessages)
		v1.DELETE("/bus/history", s.handleClearHistory)
	}
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run starts the listener and blocks until the context is canceled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.address)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type riskRequest struct {
	Address      string              `json:"address"`
	Portfolio    *core.PortfolioData `json:"portfolio,omitempty"`
	Volatilities map[string]float64  `json:"volatilities,omitempty"`
	SeriesDays   int                 `json:"series_days,omitempty"`
}

func (s *Server) handleAssessRisk(c *gin.Context) {
	var req riskRequest
	if !s.bind(c, &req) {
		return
	}
	res := s.orch.AssessRisk(c.Request.Context(), orchestrator.RiskRequest{
		Address:      req.Address,
		Portfolio:    req.Portfolio,
		Volatilities: req.Volatilities,
		SeriesDays:   req.SeriesDays,
	})
	c.JSON(http.StatusOK, res)
}

type hedgeRequest struct {
	Address  string            `json:"address,omitempty"`
	Asset    string            `json:"asset"`
	Notional decimal.Decimal   `json:"notional"`
	Risk     *core.RiskMetrics `json:"risk,omitempty"`
}

func (s *Server) handleHedge(c *gin.Context) {
	var req hedgeRequest
	if !s.bind(c, &req) {
		return
	}
	res := s.orch.GenerateHedgeRecommendations(c.Request.Context(), orchestrator.HedgeRequest{
		Address:  req.Address,
		Asset:    req.Asset,
		Notional: req.Notional,
		Risk:     req.Risk,
	})
	c.JSON(http.StatusOK, res)
}

type analysisRequest struct {
	Address   string              `json:"address"`
	Portfolio *core.PortfolioData `json:"portfolio,omitempty"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analysisRequest
	if !s.bind(c, &req) {
		return
	}
	res := s.orch.AnalyzePortfolio(c.Request.Context(), orchestrator.AnalysisRequest{
		Address:   req.Address,
		Portfolio: req.Portfolio,
	})
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleReport(c *gin.Context) {
	var req analysisRequest
	if !s.bind(c, &req) {
		return
	}
	res := s.orch.GenerateReport(c.Request.Context(), orchestrator.ReportRequest{
		Address:   req.Address,
		Portfolio: req.Portfolio,
	})
	c.JSON(http.StatusOK, res)
}

type decisionRequest struct {
	Address     string              `json:"address"`
	Portfolio   *core.PortfolioData `json:"portfolio,omitempty"`
	Predictions []core.Prediction   `json:"predictions,omitempty"`
}

func (s *Server) handleDecide(c *gin.Context) {
	var req decisionRequest
	if !s.bind(c, &req) {
		return
	}
	res := s.orch.DecidePortfolioAction(c.Request.Context(), orchestrator.DecisionRequest{
		Address:     req.Address,
		Portfolio:   req.Portfolio,
		Predictions: req.Predictions,
	})
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleSettlement(c *gin.Context) {
	var req core.SettlementRequest
	if !s.bind(c, &req) {
		return
	}
	res := s.orch.ProcessSettlement(c.Request.Context(), req)
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	c.JSON(http.StatusOK, gin.H{"messages": s.bus.History(limit)})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.bus.Stats())
}

func (s *Server) handleAgentMessages(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	c.JSON(http.StatusOK, gin.H{"messages": s.bus.AgentMessages(c.Param("id"), limit)})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	s.bus.ClearHistory()
	c.Status(http.StatusNoContent)
}

// bind decodes the JSON body, answering a 400 envelope on failure.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.logger.Warn("rejected request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
