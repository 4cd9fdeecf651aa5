// Package api exposes the dashboard HTTP surface: backtests, trades,
// settings and the watchlist.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/marketdata"
)

const (
	DefaultTimeout      = 30 * time.Second
	ServiceName         = "skyrocket-trader"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	// backtestLimit caps how much stored history a backtest request replays.
	backtestLimit = 1000
)

// Handler handles HTTP requests using the Gin framework.
type Handler struct {
	storage   db.Storage
	fetcher   *marketdata.Fetcher
	logger    *slog.Logger
	timeframe string
}

func NewHandler(storage db.Storage, fetcher *marketdata.Fetcher, logger *slog.Logger, timeframe string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		storage:   storage,
		fetcher:   fetcher,
		logger:    logger,
		timeframe: timeframe,
	}
}

// StartServer starts the HTTP server on the given address.
func (h *Handler) StartServer(addr string) error {
	return h.SetupRoutes().Run(addr)
}

// SetupRoutes configures all API routes.
func (h *Handler) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(ginLoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/backtest/:ticker", h.RunBacktest)
		api.GET("/trades/active", h.ActiveTrades)
		api.GET("/trades/history", h.TradeHistory)
		api.GET("/trades/stats", h.TradeStats)
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)
		api.GET("/watchlist", h.GetWatchlist)
		api.POST("/watchlist", h.AddWatchlistItem)
	}

	return router
}

// HealthCheck handles GET /health requests.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
