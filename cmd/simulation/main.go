package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stellarion/auction-api/internal/auction"
	"github.com/stellarion/auction-api/internal/auth"
	"github.com/stellarion/auction-api/internal/database"
	"github.com/stellarion/auction-api/internal/settlement"
	"github.com/stellarion/auction-api/internal/treasury"
	"github.com/stellarion/auction-api/internal/types"
	"github.com/stellarion/auction-api/pkg/middleware"
	"gorm.io/gorm"
)

const (
	minListings   = 10
	maxListings   = 60
	numBidders    = 4
	serverAddress = "http://localhost:8080"
)

var players = []struct {
	Username string
	Clan     string
}{
	{"commander-zero", "NOVA"},
	{"harvester-one", "NOVA"},
	{"warlord-kex", "RAVEN"},
	{"trader-moss", ""},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	mu         sync.Mutex
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the marketplace API on
// behalf of one player
type simulationClient struct {
	baseURL   string
	username  string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates a client for the given player and
// authenticates with the API. All clients share one stats map.
func newSimulationClient(username string, stats map[string]*routeStats) (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL:  serverAddress,
		username: username,
		client:   client,
		stats:    stats,
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func newStats() map[string]*routeStats {
	return map[string]*routeStats{
		"auth":   {name: "Authentication"},
		"create": {name: "Create Listing"},
		"bid":    {name: "Place Bid"},
		"buyout": {name: "Buyout"},
		"cancel": {name: "Cancel"},
		"list":   {name: "Browse Listings"},
		"sweep":  {name: "Sweep"},
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"username": sc.username,
		"password": auth.TestPassword,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

func (sc *simulationClient) postJSON(path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest("POST", sc.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// createListing submits a new listing to the API
// Returns the auction ID on success
func (sc *simulationClient) createListing(req *types.CreateListingRequest) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["create"].addDuration(time.Since(start))
	}()

	status, respBody, err := sc.postJSON("/api/v1/auction/create", req)
	if err != nil {
		sc.stats["create"].addFailure()
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["create"].addFailure()
		return "", fmt.Errorf("create listing failed with status %d: %s", status, string(respBody))
	}

	log.Debug().Str("response", string(respBody)).Msg("Create listing response")

	var result struct {
		Success bool                        `json:"success"`
		Data    types.CreateListingResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.AuctionID == "" {
		return "", fmt.Errorf("no auction ID in response: %s", string(respBody))
	}

	return result.Data.AuctionID, nil
}

// placeBid submits a bid against a listing. Conflict responses are
// expected under contention and are reported as such.
func (sc *simulationClient) placeBid(auctionID string, amount int64) (int64, bool, error) {
	start := time.Now()
	defer func() {
		sc.stats["bid"].addDuration(time.Since(start))
	}()

	status, respBody, err := sc.postJSON("/api/v1/auction/bid", types.BidRequest{
		AuctionID: auctionID,
		Amount:    amount,
	})
	if err != nil {
		sc.stats["bid"].addFailure()
		return 0, false, err
	}
	if status == http.StatusConflict {
		// Someone else bid first; caller refreshes and retries.
		return 0, true, nil
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["bid"].addFailure()
		return 0, false, fmt.Errorf("bid failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool              `json:"success"`
		Data    types.BidResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, false, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return result.Data.CurrentBid, false, nil
}

// buyout ends a listing immediately at its buyout price
func (sc *simulationClient) buyout(auctionID string) (bool, error) {
	start := time.Now()
	defer func() {
		sc.stats["buyout"].addDuration(time.Since(start))
	}()

	status, respBody, err := sc.postJSON("/api/v1/auction/buyout", map[string]string{
		"auction_id": auctionID,
	})
	if err != nil {
		sc.stats["buyout"].addFailure()
		return false, err
	}
	if status == http.StatusConflict {
		return true, nil
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["buyout"].addFailure()
		return false, fmt.Errorf("buyout failed with status %d: %s", status, string(respBody))
	}
	return false, nil
}

// cancel withdraws one of the player's own listings
func (sc *simulationClient) cancel(auctionID string) error {
	start := time.Now()
	defer func() {
		sc.stats["cancel"].addDuration(time.Since(start))
	}()

	status, respBody, err := sc.postJSON("/api/v1/auction/cancel", map[string]string{
		"auction_id": auctionID,
	})
	if err != nil {
		sc.stats["cancel"].addFailure()
		return err
	}
	// 409 means a bid landed before the cancel; that is a valid outcome.
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusConflict {
		sc.stats["cancel"].addFailure()
		return fmt.Errorf("cancel failed with status %d: %s", status, string(respBody))
	}
	return nil
}

// browseListings fetches a page of the marketplace
func (sc *simulationClient) browseListings() (*types.ListingPage, error) {
	start := time.Now()
	defer func() {
		sc.stats["list"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest("GET", sc.baseURL+"/api/v1/auction/list?sort_by=ending_soon&limit=50", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["list"].addFailure()
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		sc.stats["list"].addFailure()
		return nil, fmt.Errorf("list failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool              `json:"success"`
		Data    types.ListingPage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

// triggerSweep runs an expiration sweep pass via the internal endpoint
func (sc *simulationClient) triggerSweep() (int, error) {
	start := time.Now()
	defer func() {
		sc.stats["sweep"].addDuration(time.Since(start))
	}()

	status, respBody, err := sc.postJSON("/api/v1/internal/sweep", nil)
	if err != nil {
		sc.stats["sweep"].addFailure()
		return 0, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["sweep"].addFailure()
		return 0, fmt.Errorf("sweep failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Settled int `json:"settled"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return result.Data.Settled, nil
}

// randomListing builds a random listing request from a player's seeded
// holdings
func randomListing() *types.CreateListingRequest {
	durations := []int{12, 24, 48}
	startingBid := int64(rand.Intn(50)+1) * 100

	req := &types.CreateListingRequest{
		StartingBid:   startingBid,
		DurationHours: durations[rand.Intn(len(durations))],
	}

	if rand.Intn(2) == 0 {
		req.Item = types.ItemSpec{
			ItemType: types.ItemTypeTradeable,
			Quantity: int64(rand.Intn(3) + 1),
		}
	} else {
		req.Item = types.ItemSpec{
			ItemType:       types.ItemTypeResource,
			ResourceType:   types.ResourceMetal,
			ResourceAmount: int64(rand.Intn(500) + 100),
		}
	}

	// Roughly half the listings get a buyout price
	if rand.Intn(2) == 0 {
		req.BuyoutPrice = startingBid * int64(rand.Intn(4)+2)
	}
	// And some carry a hidden reserve
	if rand.Intn(4) == 0 {
		req.ReservePrice = startingBid + int64(rand.Intn(10)+1)*100
	}

	return req
}

// main runs the marketplace simulation
// It starts a local API server and simulates players listing, bidding and
// buying out against each other
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	stats := newStats()

	// One authenticated client per test player
	clients := make([]*simulationClient, 0, len(players))
	for _, p := range players {
		sc, err := newSimulationClient(p.Username, stats)
		if err != nil {
			log.Fatal().Err(err).Str("player", p.Username).Msg("Failed to initialize simulation client")
		}
		clients = append(clients, sc)
	}

	targetListings := rand.Intn(maxListings-minListings) + minListings
	log.Info().Int("target_listings", targetListings).Msg("Starting simulation")

	simStats := struct {
		TotalListings int
		BidsAccepted  int
		BidsStale     int
		Buyouts       int
		Cancelled     int
		Settled       int
		StartTime     time.Time
		ItemTypes     map[string]int
	}{
		StartTime: time.Now(),
		ItemTypes: make(map[string]int),
	}

	// Sellers create listings
	auctionsChan := make(chan string, targetListings)
	var wg sync.WaitGroup
	for i, sc := range clients {
		wg.Add(1)
		go func(workerID int, sc *simulationClient) {
			defer wg.Done()
			for j := 0; j < targetListings/len(clients); j++ {
				req := randomListing()
				auctionID, err := sc.createListing(req)
				if err != nil {
					log.Error().Err(err).Str("seller", sc.username).Msg("Failed to create listing")
					continue
				}
				auctionsChan <- auctionID
				log.Info().
					Str("seller", sc.username).
					Str("auction_id", auctionID).
					Str("item_type", req.Item.ItemType).
					Int64("starting_bid", req.StartingBid).
					Int64("buyout_price", req.BuyoutPrice).
					Msg("Listing created")
				time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
			}
		}(i, sc)
	}
	wg.Wait()
	close(auctionsChan)

	var auctionIDs []string
	for auctionID := range auctionsChan {
		auctionIDs = append(auctionIDs, auctionID)
	}
	simStats.TotalListings = len(auctionIDs)
	log.Info().Int("listings_created", len(auctionIDs)).Msg("All listings created")

	// Browse once to seed the item distribution chart
	if page, err := clients[0].browseListings(); err == nil {
		for _, listing := range page.Auctions {
			simStats.ItemTypes[listing.Item.ItemType]++
		}
	}

	// Bidders race each other over the open listings
	var statsMu sync.Mutex
	for b := 0; b < numBidders; b++ {
		wg.Add(1)
		go func(sc *simulationClient) {
			defer wg.Done()
			for _, auctionID := range auctionIDs {
				if rand.Intn(3) == 0 {
					continue
				}

				// Occasionally go straight for the buyout
				if rand.Intn(5) == 0 {
					conflicted, err := sc.buyout(auctionID)
					if err != nil {
						log.Debug().Err(err).Str("bidder", sc.username).Msg("Buyout rejected")
						continue
					}
					statsMu.Lock()
					if conflicted {
						simStats.BidsStale++
					} else {
						simStats.Buyouts++
					}
					statsMu.Unlock()
					continue
				}

				amount := int64(rand.Intn(20)+1)*types.MinBidIncrement + 5000
				currentBid, stale, err := sc.placeBid(auctionID, amount)
				if err != nil {
					log.Debug().Err(err).Str("bidder", sc.username).Msg("Bid rejected")
					continue
				}
				statsMu.Lock()
				if stale {
					simStats.BidsStale++
				} else {
					simStats.BidsAccepted++
				}
				statsMu.Unlock()
				if !stale {
					log.Info().
						Str("bidder", sc.username).
						Str("auction_id", auctionID).
						Int64("current_bid", currentBid).
						Msg("Bid accepted")
				}
				time.Sleep(time.Duration(rand.Intn(100)) * time.Millisecond)
			}
		}(clients[(b+1)%len(clients)])
	}
	wg.Wait()

	// A few sellers change their minds
	for i := 0; i < len(auctionIDs)/10; i++ {
		if err := clients[i%len(clients)].cancel(auctionIDs[rand.Intn(len(auctionIDs))]); err == nil {
			simStats.Cancelled++
		}
	}

	// Run a sweep pass; fresh listings are hours from expiry, so this
	// mostly verifies the idempotent no-op path
	settled, err := clients[0].triggerSweep()
	if err != nil {
		log.Error().Err(err).Msg("Failed to trigger sweep")
	}
	simStats.Settled = settled

	// Print summary
	duration := time.Since(simStats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("MARKETPLACE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Listing Statistics
------------------
Total Listings:   %d
Bids Accepted:    %d
Stale Bids:       %d
Buyouts:          %d
Cancelled:        %d
Swept/Settled:    %d
Duration:         %v

Item Distribution
-----------------
`, simStats.TotalListings, simStats.BidsAccepted, simStats.BidsStale,
		simStats.Buyouts, simStats.Cancelled, simStats.Settled,
		duration.Round(time.Millisecond))

	maxTypeCount := 0
	for _, count := range simStats.ItemTypes {
		if count > maxTypeCount {
			maxTypeCount = count
		}
	}
	for itemType, count := range simStats.ItemTypes {
		barLength := 0
		if maxTypeCount > 0 {
			barLength = int(float64(count) / float64(maxTypeCount) * 20)
		}
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-10s: %s (%d)\n", itemType, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("total_listings", simStats.TotalListings).
		Int("bids_accepted", simStats.BidsAccepted).
		Int("buyouts", simStats.Buyouts).
		Dur("duration", duration).
		Msg("Simulation completed")

	printPerformanceStats(stats)
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, rs := range stats {
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			rs.name,
			rs.totalCalls,
			rs.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// startServer initializes and starts the marketplace API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("auction-secret-key")
	for _, p := range players {
		authService.RegisterPlayer(p.Username, auth.TestPassword, p.Clan)
		if err := seedPlayer(db, p.Username); err != nil {
			return fmt.Errorf("failed to seed player %s: %w", p.Username, err)
		}
	}

	auctionService := auction.NewService(db)
	sweepProcessor := settlement.NewProcessor(settlement.NewDatabase(db), time.Minute)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	auctionHandlers := auction.NewGinHandlers(auctionService)
	settlementHandlers := settlement.NewGinHandlers(sweepProcessor)

	// Setup routes
	setupRoutes(router, authHandlers, auctionHandlers, settlementHandlers)

	// Start the server
	return router.Run(":8080")
}

// seedPlayer gives a test player resources and goods to trade with
func seedPlayer(db *gorm.DB, username string) error {
	balance, err := treasury.GetBalance(db, username)
	if err != nil {
		return err
	}
	if balance.ID != 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := treasury.CreditMetal(tx, username, 500_000); err != nil {
			return err
		}
		return treasury.GiveItem(tx, username, types.ItemSpec{
			ItemType: types.ItemTypeTradeable,
			Quantity: 100,
		})
	})
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
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

		// Internal routes
		internal := v1.Group("/internal")
		{
			internal.POST("/sweep", settlementHandlers.SweepHandler())
		}
	}
}
