package services

import (
	"auction-engine/internal/domain"
	"context"
	"fmt"
	"time"
)

type ResolutionOutcome string

const (
	OutcomeNoBids         ResolutionOutcome = "no_bids"
	OutcomeReserveNotMet  ResolutionOutcome = "reserve_not_met"
	OutcomeWinnerSelected ResolutionOutcome = "winner_selected"
)

type Resolution struct {
	Outcome ResolutionOutcome
	// Bid is the highest valid bid, set for ReserveNotMet and WinnerSelected.
	Bid *domain.Bid
}

// WinnerResolver picks the winning bid of an auction that has stopped
// taking bids.
type WinnerResolver struct{}

func NewWinnerResolver() *WinnerResolver {
	return &WinnerResolver{}
}

// Resolve must run inside the tx that moved a out of active. It updates the
// winning bid through tx and sets a.Winner, but leaves persisting a to the caller.
func (r *WinnerResolver) Resolve(ctx context.Context, tx domain.Tx, a *domain.Auction, now time.Time) (Resolution, error) {
	if a.Status == domain.AuctionActive || a.Status == domain.AuctionDraft {
		panic(fmt.Sprintf("resolve winner of %s auction %s", a.Status, a.ID))
	}

	best, err := tx.HighestValidBid(ctx, a.ID)
	if err != nil {
		return Resolution{}, fmt.Errorf("highest bid for %s: %w", a.ID, err)
	}
	if best == nil {
		return Resolution{Outcome: OutcomeNoBids}, nil
	}
	if !a.MeetsReservePrice(best.Amount) {
		return Resolution{Outcome: OutcomeReserveNotMet, Bid: best}, nil
	}

	best.Status = domain.BidWinning
	best.IsWinningBid = true
	best.UpdatedAt = now
	if err := tx.UpdateBid(ctx, best); err != nil {
		return Resolution{}, fmt.Errorf("mark winning bid %s: %w", best.ID, err)
	}

	a.Winner = &domain.Winner{
		UserID: best.UserID,
		BidID:  best.ID,
	}
	return Resolution{Outcome: OutcomeWinnerSelected, Bid: best}, nil
}
