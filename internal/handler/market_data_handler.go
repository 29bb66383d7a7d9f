package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/repository"
	"github.com/bishal-2630/Nepse-Scrapper/internal/service"
	"github.com/bishal-2630/Nepse-Scrapper/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MarketDataHandler handles the read-side HTTP endpoints
type MarketDataHandler struct {
	marketDataService *service.MarketDataService
	defaultPageSize   int
	maxPageSize       int
	logger            *zap.Logger
}

// NewMarketDataHandler creates a new market data handler
func NewMarketDataHandler(marketDataService *service.MarketDataService, defaultPageSize, maxPageSize int, logger *zap.Logger) *MarketDataHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	if maxPageSize <= 0 {
		maxPageSize = 200
	}
	return &MarketDataHandler{
		marketDataService: marketDataService,
		defaultPageSize:   defaultPageSize,
		maxPageSize:       maxPageSize,
		logger:            logger,
	}
}

// GetMarketStatus handles GET /api/status
func (h *MarketDataHandler) GetMarketStatus(c *gin.Context) {
	status, err := h.marketDataService.GetMarketStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get market status", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to get market status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"date":           status.Date,
		"is_market_open": status.IsMarketOpen,
		"last_scraped":   status.LastScraped,
		"current_time":   status.CurrentTime,
		"message":        status.Message,
	})
}

// GetLatestStocks handles GET /api/stocks/latest
func (h *MarketDataHandler) GetLatestStocks(c *gin.Context) {
	snapshot, err := h.marketDataService.GetLatestSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get latest snapshot", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to get latest stock data")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"date":          snapshot.Date,
		"scrape_time":   snapshot.ScrapeTime,
		"count":         snapshot.Count,
		"is_today_data": snapshot.IsTodayData,
		"message":       snapshot.Message,
		"summary":       snapshot.Summary,
		"data":          snapshot.Data,
	})
}

// GetTopGainers handles GET /api/stocks/top-gainers
func (h *MarketDataHandler) GetTopGainers(c *gin.Context) {
	h.topMovers(c, true)
}

// GetTopLosers handles GET /api/stocks/top-losers
func (h *MarketDataHandler) GetTopLosers(c *gin.Context) {
	h.topMovers(c, false)
}

func (h *MarketDataHandler) topMovers(c *gin.Context, gainers bool) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultMoversLimit)))

	result, err := h.marketDataService.GetTopMovers(c.Request.Context(), gainers, limit)
	if err != nil {
		h.logger.Error("Failed to get top movers",
			zap.Error(err),
			zap.Bool("gainers", gainers))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to get top movers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"date":          result.Date,
		"scrape_time":   result.ScrapeTime,
		"count":         result.Count,
		"is_today_data": result.IsTodayData,
		"message":       result.Message,
		"data":          result.Data,
	})
}

// GetStockHistory handles GET /api/stocks/:symbol/history
func (h *MarketDataHandler) GetStockHistory(c *gin.Context) {
	symbol := c.Param("symbol")
	days, _ := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(service.DefaultHistoryDays)))

	history, err := h.marketDataService.GetSymbolHistory(c.Request.Context(), symbol, days)
	if errors.Is(err, service.ErrNotFound) {
		utils.SendErrorResponse(c, http.StatusNotFound, "Stock symbol \""+symbol+"\" not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get stock history",
			zap.Error(err),
			zap.String("symbol", symbol))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to get stock history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"symbol":       history.Symbol,
		"company_name": history.CompanyName,
		"sector":       history.Sector,
		"period":       history.Period,
		"days":         history.Days,
		"data_points":  history.DataPoints,
		"data":         history.Data,
	})
}

// SearchStocks handles GET /api/stocks/search
func (h *MarketDataHandler) SearchStocks(c *gin.Context) {
	q := c.Query("q")
	if len(q) < 2 {
		utils.SendErrorResponse(c, http.StatusBadRequest, "Search query must be at least 2 characters")
		return
	}

	result, err := h.marketDataService.SearchStocks(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("Failed to search stocks", zap.Error(err), zap.String("query", q))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Search failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"query":     result.Query,
		"count":     result.Count,
		"data_date": result.DataDate,
		"results":   result.Results,
	})
}

// ListObservations handles GET /api/stocks with filtering and pagination
func (h *MarketDataHandler) ListObservations(c *gin.Context) {
	var filter repository.ObservationFilter
	filter.Symbol = c.Query("symbol")

	if startStr := c.Query("start_date"); startStr != "" {
		startDate, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			utils.SendErrorResponse(c, http.StatusBadRequest, "Invalid start_date format. Use YYYY-MM-DD")
			return
		}
		filter.StartDate = &startDate
	}
	if endStr := c.Query("end_date"); endStr != "" {
		endDate, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			utils.SendErrorResponse(c, http.StatusBadRequest, "Invalid end_date format. Use YYYY-MM-DD")
			return
		}
		filter.EndDate = &endDate
	}

	params := utils.ParsePaginationParams(c, h.defaultPageSize, h.maxPageSize)

	observations, total, err := h.marketDataService.ListObservations(
		c.Request.Context(),
		filter,
		params.Page,
		params.Limit,
	)
	if err != nil {
		h.logger.Error("Failed to list observations", zap.Error(err))
		utils.SendErrorResponse(c, http.StatusInternalServerError, "Failed to get stock data")
		return
	}

	utils.SendPaginatedResponse(c, http.StatusOK, observations, total, params.Page, params.Limit)
}
