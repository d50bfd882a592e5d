package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/stellarion/auction-api/internal/auction"
	"github.com/stellarion/auction-api/internal/auth"
	"github.com/stellarion/auction-api/internal/database"
	"github.com/stellarion/auction-api/internal/settlement"
	"github.com/stellarion/auction-api/internal/treasury"
	"github.com/stellarion/auction-api/internal/types"
	"github.com/stellarion/auction-api/pkg/middleware"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction marketplace API with graceful
// shutdown support. It sets up all required services, database connections
// and API routes, and starts the background expiration sweep.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService("auction-secret-key")
	authHandlers := auth.NewGinHandlers(authService)
	// Register test players
	registerTestPlayers(authService, db)

	auctionService := auction.NewService(db)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	// Create and start the expiration sweep
	sweepProcessor := settlement.NewProcessor(settlement.NewDatabase(db), time.Minute)
	settlementHandlers := settlement.NewGinHandlers(sweepProcessor)

	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go sweepProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())
	router.Use(middleware.PrometheusMiddleware())

	// Setup API routes
	setupRoutes(router, authHandlers, auctionHandlers, settlementHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Auction routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Marketplace routes
		auctions := v1.Group("/auction")
		auctions.Use(middleware.JWTAuth())
		{
			auctions.POST("/create", auctionHandlers.CreateListingHandler())
			auctions.POST("/bid", auctionHandlers.BidHandler())
			auctions.POST("/buyout", auctionHandlers.BuyoutHandler())
			auctions.POST("/cancel", auctionHandlers.CancelHandler())
			auctions.GET("/list", auctionHandlers.ListHandler())
			auctions.GET("/my-listings", auctionHandlers.MyListingsHandler())
			auctions.GET("/my-bids", auctionHandlers.MyBidsHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetListingHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/sweep", settlementHandlers.SweepHandler())
		}
	}
}

// registerTestPlayers seeds credentials and starting resources so the
// simulation can run against a fresh database.
func registerTestPlayers(authService *auth.Service, db *gorm.DB) {
	players := []struct {
		username string
		clan     string
	}{
		{auth.TestUsername, auth.TestClan},
		{"harvester-one", "NOVA"},
		{"warlord-kex", "RAVEN"},
		{"trader-moss", ""},
	}

	for _, p := range players {
		authService.RegisterPlayer(p.username, auth.TestPassword, p.clan)

		balance, err := treasury.GetBalance(db, p.username)
		if err != nil || balance.ID != 0 {
			continue
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := treasury.CreditMetal(tx, p.username, 500_000); err != nil {
				return err
			}
			return treasury.GiveItem(tx, p.username, types.ItemSpec{
				ItemType: types.ItemTypeTradeable,
				Quantity: 50,
			})
		})
		if err != nil {
			zlog.Warn().Err(err).Str("player", p.username).Msg("failed to seed test player")
		}
	}
}
