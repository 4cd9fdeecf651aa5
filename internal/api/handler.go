package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skyrockethq/skyrocket-trader/internal/backtest"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

// RunBacktest handles GET /api/backtest/:ticker requests. It replays the
// stored history for the ticker through the simulator.
func (h *Handler) RunBacktest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		h.handleError(c, errors.New("ticker is required"), http.StatusBadRequest, "ticker is required")
		return
	}

	candles, err := h.storage.GetRecentCandles(ctx, ticker, h.timeframe, backtestLimit)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	result, err := backtest.Run(candles, ticker)
	if err != nil {
		var insufficient *backtest.InsufficientDataError
		if errors.As(err, &insufficient) {
			h.handleError(c, err, http.StatusBadRequest, err.Error())
			return
		}
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ActiveTrades handles GET /api/trades/active requests.
func (h *Handler) ActiveTrades(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	open, err := h.storage.ListOpen(ctx)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	if open == nil {
		open = []position.Position{}
	}
	c.JSON(http.StatusOK, open)
}

// TradeHistory handles GET /api/trades/history requests.
func (h *Handler) TradeHistory(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.handleError(c, errors.New("invalid limit"), http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	closed, err := h.storage.ListClosed(ctx, limit)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	if closed == nil {
		closed = []position.Position{}
	}
	c.JSON(http.StatusOK, closed)
}

// TradeStats handles GET /api/trades/stats requests.
func (h *Handler) TradeStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	closed, err := h.storage.ListClosed(ctx, 0)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	wins := 0
	totalPnL := 0.0
	for _, pos := range closed {
		if pos.PnL > 0 {
			wins++
		}
		totalPnL += pos.PnL
	}

	winRate := 0.0
	if len(closed) > 0 {
		winRate = float64(wins) / float64(len(closed)) * 100
	}

	open, err := h.storage.ListOpen(ctx)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Open positions are marked to the latest stored close; entry price
	// stands in when no candle has been fetched yet.
	openValue := 0.0
	for _, pos := range open {
		price := pos.EntryPrice
		if latest, err := h.storage.GetLatestCandle(ctx, pos.Symbol, h.timeframe); err == nil && latest != nil {
			price = latest.Close
		}
		openValue += pos.Quantity * price
	}

	c.JSON(http.StatusOK, gin.H{
		"total_trades":   len(closed),
		"wins":           wins,
		"losses":         len(closed) - wins,
		"win_rate":       winRate,
		"total_pnl":      totalPnL,
		"open_positions": len(open),
		"open_value":     openValue,
	})
}

// GetSettings handles GET /api/settings requests.
func (h *Handler) GetSettings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	global, err := h.storage.Global(ctx)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, global)
}

// UpdateSettings handles PUT /api/settings requests.
func (h *Handler) UpdateSettings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	var global settings.Global
	if err := c.ShouldBindJSON(&global); err != nil {
		h.handleError(c, err, http.StatusBadRequest, "invalid settings payload")
		return
	}
	if global.AllocationPct < 0 || global.AllocationPct > 100 ||
		global.StopLossPct < 0 || global.StopLossPct > 100 ||
		global.TakeProfitPct < 0 || global.TakeProfitPct > 100 {
		h.handleError(c, errors.New("percentages out of range"), http.StatusBadRequest, "percentages must be between 0 and 100")
		return
	}

	if err := h.storage.UpdateGlobal(ctx, global); err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, global)
}

// GetWatchlist handles GET /api/watchlist requests.
func (h *Handler) GetWatchlist(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	items, err := h.storage.Watchlist(ctx)
	if err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	if items == nil {
		items = []settings.WatchlistItem{}
	}
	c.JSON(http.StatusOK, items)
}

// AddWatchlistItem handles POST /api/watchlist requests. History for the
// new ticker is fetched in the background so the request returns fast.
func (h *Handler) AddWatchlistItem(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	var item settings.WatchlistItem
	if err := c.ShouldBindJSON(&item); err != nil {
		h.handleError(c, err, http.StatusBadRequest, "invalid watchlist payload")
		return
	}
	item.Ticker = strings.ToUpper(strings.TrimSpace(item.Ticker))
	if item.Ticker == "" {
		h.handleError(c, errors.New("ticker is required"), http.StatusBadRequest, "ticker is required")
		return
	}

	if err := h.storage.AddWatchlistItem(ctx, &item); err != nil {
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.fetcher != nil && item.Active {
		go func(ticker string) {
			fetchCtx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
			defer cancel()
			if _, err := h.fetcher.FetchAndStore(fetchCtx, ticker, h.timeframe, backtestLimit); err != nil {
				h.logger.Error("background fetch failed",
					slog.String("ticker", ticker),
					slog.String("error", err.Error()),
				)
			}
		}(item.Ticker)
	}

	c.JSON(http.StatusCreated, item)
}

// handleError logs the error and sends the HTTP response.
func (h *Handler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := "unknown"
	if id, ok := c.Get(RequestIDContextKey); ok {
		if s, ok := id.(string); ok {
			requestID = s
		}
	}

	h.logger.Error("API error",
		slog.String("request_id", requestID),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
		slog.Int("status_code", statusCode),
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}
