package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type PlaceBidCommand struct {
	AuctionID string
	Bidder    domain.Principal
	Amount    decimal.Decimal
	IP        string
	UserAgent string
}

type BidService struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	stateCache  domain.AuctionStateCache
	fees        domain.FeeResolver
	coordinator *ParallelCoordinator
	extension   ExtensionPolicy
	sink        NotificationSink
	log         logger.Logger
	now         func() time.Time
}

func NewBidService(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	stateCache domain.AuctionStateCache,
	fees domain.FeeResolver,
	coordinator *ParallelCoordinator,
	extension ExtensionPolicy,
	sink NotificationSink,
	log logger.Logger,
) *BidService {
	return &BidService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		stateCache:  stateCache,
		fees:        fees,
		coordinator: coordinator,
		extension:   extension,
		sink:        sink,
		log:         log,
		now:         time.Now,
	}
}

func (s *BidService) SetClock(now func() time.Time) {
	s.now = now
}

type placedBid struct {
	auction  *domain.Auction
	bid      *domain.Bid
	outbid   []*domain.Bid
	extended bool
	mirror   *MirroredBid
}

// PlaceBid admits a bid if, under the auction's lock, the auction is
// biddable, the bidder is eligible and the amount clears the increment.
func (s *BidService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*domain.Bid, error) {
	if !cmd.Amount.IsPositive() {
		return nil, domain.NewValidationError("Please provide a valid bid amount")
	}

	auction, err := s.auctionRepo.GetAuction(ctx, cmd.AuctionID)
	if err != nil {
		return nil, notFound(err, "Auction")
	}

	// A cached draft may be stale, so only closed statuses are rejected early.
	if s.stateCache != nil {
		status, known, err := s.stateCache.GetAuctionStatus(ctx, auction.ID)
		if err != nil {
			s.log.Warn("State cache lookup failed", "auction_id", auction.ID, "error", err)
		} else if known && status.IsClosed() {
			return nil, domain.NewNotAcceptingBidsError()
		}
	}

	bidFee := s.resolveBidFee(ctx, cmd.Bidder.Role, auction)

	lockIDs := []string{auction.ID}
	if auction.IsLinked() {
		lockIDs = append(lockIDs, auction.ParallelAuctionID)
	}

	var placed placedBid
	err = s.auctionRepo.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		locked, err := tx.LockAuctions(ctx, lockIDs...)
		if err != nil {
			return err
		}
		a, ok := locked[auction.ID]
		if !ok {
			return domain.NewNotFoundError("Auction")
		}

		now := s.now()
		if !a.IsBiddable(now) {
			return domain.NewNotAcceptingBidsError()
		}
		if !domain.IsEligible(cmd.Bidder.Role, a.UserType) {
			return domain.NewNotEligibleError()
		}
		if !a.MeetsMinimumIncrement(cmd.Amount) {
			return domain.NewBelowMinimumError(a.MinimumAcceptableBid())
		}

		outbid, err := tx.TransitionBids(ctx, a.ID, domain.BidValid, domain.BidOutbid)
		if err != nil {
			return err
		}

		bid := &domain.Bid{
			ID:        utils.GenerateID("bid"),
			AuctionID: a.ID,
			UserID:    cmd.Bidder.UserID,
			Amount:    cmd.Amount,
			BidFee:    bidFee,
			Status:    domain.BidValid,
			IP:        cmd.IP,
			UserAgent: userAgentOrUnknown(cmd.UserAgent),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		a.CurrentPrice = cmd.Amount
		a.TotalBids++
		extended := s.extension.Apply(a, now)
		a.UpdatedAt = now
		if err := tx.UpdateAuction(ctx, a); err != nil {
			return err
		}

		placed = placedBid{auction: a, bid: bid, outbid: outbid, extended: extended}

		if a.IsLinked() {
			if partner, ok := locked[a.ParallelAuctionID]; ok {
				mirror, err := s.coordinator.MirrorBid(ctx, tx, partner, bid, now)
				if err != nil {
					return err
				}
				placed.mirror = mirror
			} else {
				s.log.Warn("Parallel partner missing", "auction_id", a.ID, "partner_id", a.ParallelAuctionID)
			}
		}
		return nil
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			s.log.Debug("Bid rejected", "auction_id", cmd.AuctionID, "user_id", cmd.Bidder.UserID,
				"amount", cmd.Amount.String(), "reason", de.Kind)
		}
		return nil, err
	}

	s.log.Info("Bid placed", "auction_id", placed.auction.ID, "bid_id", placed.bid.ID,
		"user_id", placed.bid.UserID, "amount", placed.bid.Amount.String(), "extended", placed.extended)

	s.announce(ctx, placed)
	return placed.bid, nil
}

// resolveBidFee prices the bid for the bidder's role, falling back to the
// auction's own fee.
func (s *BidService) resolveBidFee(ctx context.Context, role domain.Role, a *domain.Auction) decimal.Decimal {
	if s.fees == nil {
		return a.BidFee
	}
	fees, found, err := s.fees.ResolveFees(ctx, string(role), a.PricingCategory)
	if err != nil {
		s.log.Warn("Fee lookup failed, using auction fee", "auction_id", a.ID, "error", err)
		return a.BidFee
	}
	if !found {
		return a.BidFee
	}
	return fees.BidFee
}

func (s *BidService) announce(ctx context.Context, placed placedBid) {
	a, bid := placed.auction, placed.bid
	now := bid.CreatedAt
	amount := bid.Amount.String()

	notes := []domain.Notification{{
		Event:       domain.EventBidPlaced,
		RecipientID: a.CreatedBy,
		AuctionID:   a.ID,
		Amount:      amount,
		OccurredAt:  now,
	}}
	notes = append(notes, outbidNotices(a.ID, bid.UserID, amount, placed.outbid, now)...)

	if placed.extended {
		notes = append(notes, s.extendedNotices(ctx, a, now)...)
	}
	if m := placed.mirror; m != nil {
		notes = append(notes, outbidNotices(m.Partner.ID, bid.UserID, amount, m.Outbid, now)...)
		if m.Extended {
			notes = append(notes, s.extendedNotices(ctx, m.Partner, now)...)
		}
	}

	s.sink.Dispatch(notes...)
}

func (s *BidService) extendedNotices(ctx context.Context, a *domain.Auction, now time.Time) []domain.Notification {
	bidders, err := s.bidRepo.ListBidderIDs(ctx, a.ID)
	if err != nil {
		s.log.Warn("Failed to list bidders for extension notice", "auction_id", a.ID, "error", err)
		return nil
	}
	end := a.EndTime
	notes := make([]domain.Notification, 0, len(bidders))
	for _, id := range bidders {
		notes = append(notes, domain.Notification{
			Event:       domain.EventAuctionExtended,
			RecipientID: id,
			AuctionID:   a.ID,
			EndTime:     &end,
			OccurredAt:  now,
		})
	}
	return notes
}

// outbidNotices tells each displaced bidder once, skipping the new leader.
func outbidNotices(auctionID, leaderID, amount string, outbid []*domain.Bid, now time.Time) []domain.Notification {
	seen := map[string]bool{leaderID: true}
	var notes []domain.Notification
	for _, b := range outbid {
		if seen[b.UserID] {
			continue
		}
		seen[b.UserID] = true
		notes = append(notes, domain.Notification{
			Event:       domain.EventOutbid,
			RecipientID: b.UserID,
			AuctionID:   auctionID,
			Amount:      amount,
			OccurredAt:  now,
		})
	}
	return notes
}

func userAgentOrUnknown(ua string) string {
	if ua == "" {
		return "Unknown"
	}
	return ua
}

// notFound turns a store miss into a caller-facing NotFound.
func notFound(err error, what string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewNotFoundError(what)
	}
	return err
}
