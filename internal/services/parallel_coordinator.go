package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const systemBidUserAgent = "System generated bid"

// MirroredBid describes what a bid did to the partner auction.
type MirroredBid struct {
	Partner  *domain.Auction
	AutoBid  *domain.Bid
	Outbid   []*domain.Bid
	Extended bool
}

// MirroredTransition describes a lifecycle change applied to the partner.
type MirroredTransition struct {
	Partner    *domain.Auction
	Resolution *Resolution
}

// ParallelCoordinator keeps the two auctions of a parallel pair in step.
// Every Mirror* call runs inside the caller's tx with both auctions locked
// and never touches the origin, so a mirrored change is never mirrored back.
type ParallelCoordinator struct {
	auctions  domain.AuctionRepository
	extension ExtensionPolicy
	resolver  *WinnerResolver
	log       logger.Logger
	now       func() time.Time
}

func NewParallelCoordinator(
	auctions domain.AuctionRepository,
	extension ExtensionPolicy,
	resolver *WinnerResolver,
	log logger.Logger,
) *ParallelCoordinator {
	return &ParallelCoordinator{
		auctions:  auctions,
		extension: extension,
		resolver:  resolver,
		log:       log,
		now:       time.Now,
	}
}

func (c *ParallelCoordinator) SetClock(now func() time.Time) {
	c.now = now
}

// MirrorBid replays an accepted bid onto partner as an auto bid. Returns nil
// when the partner is not active.
func (c *ParallelCoordinator) MirrorBid(ctx context.Context, tx domain.Tx, partner *domain.Auction, bid *domain.Bid, now time.Time) (*MirroredBid, error) {
	return c.mirrorBid(ctx, tx, partner, bid, now, true)
}

func (c *ParallelCoordinator) mirrorBid(ctx context.Context, tx domain.Tx, partner *domain.Auction, bid *domain.Bid, now time.Time, extend bool) (*MirroredBid, error) {
	if partner.Status != domain.AuctionActive {
		return nil, nil
	}

	outbid, err := tx.TransitionBids(ctx, partner.ID, domain.BidValid, domain.BidOutbid)
	if err != nil {
		return nil, fmt.Errorf("demote bids on %s: %w", partner.ID, err)
	}

	auto := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		AuctionID: partner.ID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		BidFee:    decimal.Zero,
		IsAutoBid: true,
		Status:    domain.BidValid,
		IP:        bid.IP,
		UserAgent: systemBidUserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertBid(ctx, auto); err != nil {
		return nil, fmt.Errorf("insert auto bid on %s: %w", partner.ID, err)
	}

	partner.CurrentPrice = decimal.Max(partner.CurrentPrice, bid.Amount)
	partner.TotalBids++
	extended := false
	if extend {
		extended = c.extension.Apply(partner, now)
	}
	partner.UpdatedAt = now
	if err := tx.UpdateAuction(ctx, partner); err != nil {
		return nil, fmt.Errorf("update partner %s: %w", partner.ID, err)
	}

	return &MirroredBid{Partner: partner, AutoBid: auto, Outbid: outbid, Extended: extended}, nil
}

// MirrorTransition moves partner to target when that move is legal from
// the partner's own status. Ending resolves the partner's winner, and
// cancelling cancels its valid bids.
func (c *ParallelCoordinator) MirrorTransition(ctx context.Context, tx domain.Tx, partner *domain.Auction, target domain.AuctionStatus, now time.Time) (*MirroredTransition, error) {
	if !partner.Status.CanTransitionTo(target) {
		return nil, nil
	}
	res, err := applyTransition(ctx, tx, c.resolver, partner, target, now)
	if err != nil {
		return nil, err
	}
	return &MirroredTransition{Partner: partner, Resolution: res}, nil
}

// MirrorSync copies the supplied fields onto a draft partner. Status is not
// handled here; callers route it through MirrorTransition.
func (c *ParallelCoordinator) MirrorSync(ctx context.Context, tx domain.Tx, partner *domain.Auction, fields domain.AuctionSyncFields, now time.Time) error {
	fields.Status = nil
	if fields.IsEmpty() || partner.Status != domain.AuctionDraft {
		return nil
	}
	fields.ApplyTo(partner)
	partner.UpdatedAt = now
	if err := tx.UpdateAuction(ctx, partner); err != nil {
		return fmt.Errorf("sync partner %s: %w", partner.ID, err)
	}
	return nil
}

var errOneSidedLink = errors.New("one-sided parallel link")

// Reconcile repairs a pair whose statuses or prices drifted apart. It
// reports whether anything changed.
func (c *ParallelCoordinator) Reconcile(ctx context.Context, auctionID string) (bool, error) {
	a, err := c.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if !a.IsLinked() {
		return false, nil
	}

	changed := false
	err = c.auctions.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		locked, err := tx.LockAuctions(ctx, a.ID, a.ParallelAuctionID)
		if err != nil {
			return err
		}
		origin, partner := locked[a.ID], locked[a.ParallelAuctionID]
		if origin == nil {
			return nil
		}
		if partner == nil || partner.ParallelAuctionID != origin.ID {
			return fmt.Errorf("%w: %s -> %s", errOneSidedLink, origin.ID, origin.ParallelAuctionID)
		}

		now := c.now()
		if origin.Status != partner.Status {
			moved, err := c.reconcileStatus(ctx, tx, origin, partner, now)
			if err != nil {
				return err
			}
			changed = changed || moved
		}
		if origin.Status == domain.AuctionActive && partner.Status == domain.AuctionActive &&
			!origin.CurrentPrice.Equal(partner.CurrentPrice) {
			moved, err := c.reconcilePrice(ctx, tx, origin, partner, now)
			if err != nil {
				return err
			}
			changed = changed || moved
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		c.log.Info("Reconciled parallel auctions", "auction_id", a.ID, "partner_id", a.ParallelAuctionID)
	}
	return changed, nil
}

var statusRank = map[domain.AuctionStatus]int{
	domain.AuctionDraft:     0,
	domain.AuctionActive:    1,
	domain.AuctionEnded:     2,
	domain.AuctionCompleted: 3,
}

// reconcileStatus walks the lagging auction forward until it matches the
// leading one. A cancelled side cancels the other.
func (c *ParallelCoordinator) reconcileStatus(ctx context.Context, tx domain.Tx, x, y *domain.Auction, now time.Time) (bool, error) {
	if x.Status == domain.AuctionCancelled || y.Status == domain.AuctionCancelled {
		other := x
		if x.Status == domain.AuctionCancelled {
			other = y
		}
		res, err := c.MirrorTransition(ctx, tx, other, domain.AuctionCancelled, now)
		return res != nil, err
	}

	lag, lead := x, y
	if statusRank[x.Status] > statusRank[y.Status] {
		lag, lead = y, x
	}
	moved := false
	for lag.Status != lead.Status {
		next := nextForward(lag.Status)
		res, err := c.MirrorTransition(ctx, tx, lag, next, now)
		if err != nil {
			return moved, err
		}
		if res == nil {
			break
		}
		moved = true
	}
	return moved, nil
}

func nextForward(s domain.AuctionStatus) domain.AuctionStatus {
	switch s {
	case domain.AuctionDraft:
		return domain.AuctionActive
	case domain.AuctionActive:
		return domain.AuctionEnded
	case domain.AuctionEnded:
		return domain.AuctionCompleted
	default:
		return s
	}
}

// reconcilePrice replays the higher side's leading bid onto the lower side.
func (c *ParallelCoordinator) reconcilePrice(ctx context.Context, tx domain.Tx, x, y *domain.Auction, now time.Time) (bool, error) {
	high, low := x, y
	if y.CurrentPrice.GreaterThan(x.CurrentPrice) {
		high, low = y, x
	}
	lead, err := tx.HighestValidBid(ctx, high.ID)
	if err != nil {
		return false, err
	}
	if lead == nil {
		return false, nil
	}
	res, err := c.mirrorBid(ctx, tx, low, lead, now, false)
	return res != nil, err
}

// applyTransition performs the side effects of moving a to target and
// persists it. Legality is the caller's concern.
func applyTransition(ctx context.Context, tx domain.Tx, resolver *WinnerResolver, a *domain.Auction, target domain.AuctionStatus, now time.Time) (*Resolution, error) {
	a.Status = target
	a.UpdatedAt = now

	var res *Resolution
	switch target {
	case domain.AuctionEnded:
		end := now
		a.ActualEndTime = &end
		r, err := resolver.Resolve(ctx, tx, a, now)
		if err != nil {
			return nil, err
		}
		res = &r
	case domain.AuctionCancelled:
		if _, err := tx.TransitionBids(ctx, a.ID, domain.BidValid, domain.BidCancelled); err != nil {
			return nil, fmt.Errorf("cancel bids on %s: %w", a.ID, err)
		}
	}

	if err := tx.UpdateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("update auction %s: %w", a.ID, err)
	}
	return res, nil
}
