package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

var listingsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auction_listings_resolved_total",
	Help: "Listings resolved by the expiration sweep, by outcome",
}, []string{"outcome"})

// Processor is the expiration sweep: a periodic scan that resolves active
// listings whose expiry has passed. Each listing's transition is
// independent, so an interrupted sweep resumes safely on the next tick.
type Processor struct {
	db            *Database
	sweepInterval time.Duration
}

func NewProcessor(db *Database, sweepInterval time.Duration) *Processor {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Processor{
		db:            db,
		sweepInterval: sweepInterval,
	}
}

// Start begins the sweep loop and blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "expiration_sweep").Logger()
	logger.Info().Dur("interval", p.sweepInterval).Msg("starting expiration sweep")

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down expiration sweep")
			return
		case <-ticker.C:
			if _, err := p.SweepOnce(); err != nil {
				logger.Error().Err(err).Msg("sweep pass failed")
			}
		}
	}
}

// SweepOnce resolves every due listing and returns the number settled.
// Re-running on an already-terminal listing is a no-op: the transition
// rejects it and the sweep moves on.
func (p *Processor) SweepOnce() (int, error) {
	logger := log.With().Str("component", "expiration_sweep").Logger()

	auctionIDs, err := p.db.GetDueListings(time.Now())
	if err != nil {
		return 0, err
	}
	if len(auctionIDs) == 0 {
		return 0, nil
	}

	logger.Info().Int("due_count", len(auctionIDs)).Msg("processing due listings")

	settled := 0
	for _, auctionID := range auctionIDs {
		listing, err := p.settleDueListing(auctionID)
		if err != nil {
			// Lost the race to a last-second bid, buyout or a
			// concurrent sweep. Nothing to do for this listing.
			if errors.Is(err, types.ErrStaleListing) || errors.Is(err, types.ErrNotActive) || errors.Is(err, types.ErrNotFound) {
				continue
			}
			logger.Error().Err(err).Str("auction_id", auctionID).Msg("failed to settle due listing")
			continue
		}

		settled++
		listingsResolved.WithLabelValues(strings.ToLower(listing.Status)).Inc()
		logger.Info().
			Str("auction_id", listing.AuctionID).
			Str("status", listing.Status).
			Int64("final_price", listing.FinalPrice).
			Str("winner", listing.WinnerUsername).
			Msg("resolved expired listing")
	}

	return settled, nil
}

// settleDueListing drives one listing to SOLD or EXPIRED. A sale requires
// at least one bid and, if a reserve is set, a current bid that meets it.
func (p *Processor) settleDueListing(auctionID string) (*types.AuctionListing, error) {
	return p.db.TransitionIfActive(auctionID, func(tx *gorm.DB, listing *types.AuctionListing) error {
		if time.Now().Before(listing.ExpiresAt) {
			// A last-second bid cannot extend expiry, but the listing
			// set may be stale if the sweep ran long.
			return types.ErrNotActive
		}

		hasBids := listing.HighestBidder != ""
		reserveMet := listing.ReservePrice == 0 || listing.CurrentBid >= listing.ReservePrice
		if hasBids && reserveMet {
			return SettleSale(tx, listing, listing.CurrentBid, listing.HighestBidder, true)
		}
		return SettleVoid(tx, listing, types.StatusExpired)
	})
}
