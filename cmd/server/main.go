package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bishal-2630/Nepse-Scrapper/internal/config"
	"github.com/bishal-2630/Nepse-Scrapper/internal/handler"
	"github.com/bishal-2630/Nepse-Scrapper/internal/market"
	"github.com/bishal-2630/Nepse-Scrapper/internal/middleware"
	"github.com/bishal-2630/Nepse-Scrapper/internal/repository"
	"github.com/bishal-2630/Nepse-Scrapper/internal/scheduler"
	"github.com/bishal-2630/Nepse-Scrapper/internal/scrape"
	"github.com/bishal-2630/Nepse-Scrapper/internal/service"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Build the trading calendar
	calendar, err := market.NewCalendar(
		cfg.Market.Timezone,
		cfg.Market.TradingDays,
		cfg.Market.OpenTime,
		cfg.Market.CloseTime,
		cfg.Market.ClosingWindow,
		cfg.Market.BucketInterval,
	)
	if err != nil {
		logger.Fatal("Invalid market calendar configuration", zap.Error(err))
	}

	// Connect to database
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	companyRepo := repository.NewCompanyRepository(db, logger)
	observationRepo := repository.NewObservationRepository(db, logger)
	marketStatusRepo := repository.NewMarketStatusRepository(db, logger)

	// Initialize data sources and retry wrappers
	liveSource := scrape.NewLiveAPISource(scrape.LiveAPIConfig{
		BaseURL:            cfg.Scraper.LiveURL,
		GainersPath:        cfg.Scraper.GainersPath,
		LosersPath:         cfg.Scraper.LosersPath,
		Timeout:            cfg.Scraper.RequestTimeout,
		InsecureSkipVerify: cfg.Scraper.InsecureSkipVerify,
	}, logger)
	htmlSource := scrape.NewHTMLScrapeSource(cfg.Scraper.HTMLURL, cfg.Scraper.RequestTimeout, logger)

	chain := []service.PayloadFetcher{
		scrape.NewFetcher(liveSource, cfg.Scraper.MaxAttempts, cfg.Scraper.Backoff, logger),
		scrape.NewFetcher(htmlSource, cfg.Scraper.MaxAttempts, cfg.Scraper.Backoff, logger),
	}

	var fallback service.PayloadFetcher
	if cfg.Scraper.SyntheticFallback {
		synthetic := scrape.NewSyntheticFallbackSource(time.Now().UnixNano(), logger)
		fallback = scrape.NewFetcher(synthetic, 1, 0, logger)
	}

	// Initialize services
	scrapeService := service.NewScrapeService(
		calendar,
		chain,
		fallback,
		scrape.NewNormalizer(logger),
		companyRepo,
		observationRepo,
		marketStatusRepo,
		service.DuplicatePolicy(cfg.Scraper.DuplicatePolicy),
		logger,
	)
	marketDataService := service.NewMarketDataService(
		observationRepo,
		companyRepo,
		marketStatusRepo,
		calendar,
		logger,
	)

	// Initialize handlers
	marketDataHandler := handler.NewMarketDataHandler(
		marketDataService,
		cfg.API.DefaultPageSize,
		cfg.API.MaxPageSize,
		logger,
	)
	scrapeHandler := handler.NewScrapeHandler(scrapeService, logger)

	// Set up HTTP server with Gin
	router := setupRouter(marketDataHandler, scrapeHandler, cfg.Scraper.CronKey, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the in-process scrape loop
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scrapeService, cfg.Scheduler.Spec, calendar.Location, logger)
		if err := sched.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func setupRouter(
	marketDataHandler *handler.MarketDataHandler,
	scrapeHandler *handler.ScrapeHandler,
	cronKey string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	api := router.Group("/api")
	{
		api.GET("/status", marketDataHandler.GetMarketStatus)

		stocks := api.Group("/stocks")
		{
			stocks.GET("", marketDataHandler.ListObservations)
			stocks.GET("/latest", marketDataHandler.GetLatestStocks)
			stocks.GET("/top-gainers", marketDataHandler.GetTopGainers)
			stocks.GET("/top-losers", marketDataHandler.GetTopLosers)
			stocks.GET("/search", marketDataHandler.SearchStocks)
			stocks.GET("/:symbol/history", marketDataHandler.GetStockHistory)
		}

		cron := api.Group("/cron")
		cron.Use(middleware.CronAuthMiddleware(cronKey, logger))
		{
			cron.POST("/scrape", scrapeHandler.TriggerScrape)
			cron.GET("/scrape", scrapeHandler.TriggerScrape)
		}
	}

	return router
}
