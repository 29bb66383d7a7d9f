package handler

import (
	"net/http"

	"github.com/bishal-2630/Nepse-Scrapper/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScrapeHandler exposes the cron-style scrape trigger
type ScrapeHandler struct {
	scrapeService *service.ScrapeService
	logger        *zap.Logger
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(scrapeService *service.ScrapeService, logger *zap.Logger) *ScrapeHandler {
	return &ScrapeHandler{
		scrapeService: scrapeService,
		logger:        logger,
	}
}

// TriggerScrape handles GET /api/cron/scrape. It runs one cycle synchronously
// and always answers 200 with a structured result: the cycle itself never
// raises, and an external cron cannot act on a 500 anyway.
func (h *ScrapeHandler) TriggerScrape(c *gin.Context) {
	result := h.scrapeService.RunCycle(c.Request.Context())

	status := "success"
	if !result.Success {
		status = "no_data"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"records_saved":     result.RecordsSaved,
		"records_skipped":   result.RecordsSkipped,
		"records_dropped":   result.RecordsDropped,
		"companies_created": result.CompaniesCreated,
		"data_source_used":  result.DataSource,
		"market_session":    result.Session,
		"message":           result.Message,
		"timestamp":         result.Timestamp,
	})
}
