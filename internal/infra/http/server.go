// Package http is the thin transport over the log store and anchor
// ledger: route dispatch, JSON marshaling, and status-code mapping. The
// cryptographic semantics live in the merkle and logstore packages.
package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"merklelog/internal/config"
	"merklelog/internal/domain"
	"merklelog/internal/infra/logstore"
)

type Server struct {
	cfg     config.Config
	store   *logstore.Store
	ledger  domain.AnchorLedger
	limiter domain.RateLimiter
	logger  *zap.Logger
	engine  *gin.Engine
}

func NewServer(cfg config.Config, store *logstore.Store, ledger domain.AnchorLedger, limiter domain.RateLimiter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		store:   store,
		ledger:  ledger,
		limiter: limiter,
		logger:  logger,
	}
	s.engine = s.buildEngine()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	engine.Use(requestID())
	if s.cfg.MaxBodyBytes > 0 {
		engine.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
			c.Next()
		})
	}
	engine.Use(requestLogger(s.logger))
	if s.limiter != nil && s.cfg.RateLimitRequests > 0 {
		engine.Use(s.enforceRateLimit)
	}

	engine.GET("/health", s.handleHealth)
	engine.POST("/append", s.handleAppend)
	engine.GET("/root", s.handleRoot)
	engine.GET("/prove/:index", s.handleProve)
	engine.POST("/verify", s.handleVerify)
	engine.GET("/anchors", s.handleAnchors)
	return engine
}

func (s *Server) enforceRateLimit(c *gin.Context) {
	key := fmt.Sprintf("client:%s", c.ClientIP())
	decision, err := s.limiter.Allow(c.Request.Context(), key, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)
	if err != nil {
		// Fail open: an unavailable limiter must not take the log down.
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		c.Next()
		return
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		c.Abort()
		return
	}
	c.Next()
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}
