package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AuctionRules holds the defaults and bounds applied to new auctions.
type AuctionRules struct {
	DefaultMinimumBidIncrement decimal.Decimal
	DefaultBidTimeBuffer       time.Duration
	MinBidTimeBuffer           time.Duration
	MaxBidTimeBuffer           time.Duration
}

type CreateAuctionCommand struct {
	Title               string
	Description         string
	VehicleID           string
	StartTime           time.Time
	EndTime             time.Time
	StartingPrice       decimal.Decimal
	ReservePrice        *decimal.Decimal
	MinimumBidIncrement *decimal.Decimal
	BidTimeBuffer       *time.Duration
	PricingCategory     domain.PricingCategory
	UserType            domain.UserType
	VisibilityType      domain.VisibilityType
	IsParallelAuction   bool
}

// UpdateAuctionCommand carries the fields a caller supplied; nil means unchanged.
type UpdateAuctionCommand struct {
	Title          *string
	Description    *string
	VisibilityType *domain.VisibilityType
	Sync           domain.AuctionSyncFields
}

type BidPage struct {
	Bids   []*domain.Bid
	Total  int
	Offset int
	Limit  int
}

type WinnerInfo struct {
	Winner     domain.Winner
	WinningBid *domain.Bid
}

type AuctionManager struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	stateCache  domain.AuctionStateCache
	fees        domain.FeeResolver
	coordinator *ParallelCoordinator
	resolver    *WinnerResolver
	sink        NotificationSink
	notifier    domain.Notifier
	rules       AuctionRules
	log         logger.Logger
	now         func() time.Time
}

func NewAuctionManager(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	stateCache domain.AuctionStateCache,
	fees domain.FeeResolver,
	coordinator *ParallelCoordinator,
	resolver *WinnerResolver,
	sink NotificationSink,
	notifier domain.Notifier,
	rules AuctionRules,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		stateCache:  stateCache,
		fees:        fees,
		coordinator: coordinator,
		resolver:    resolver,
		sink:        sink,
		notifier:    notifier,
		rules:       rules,
		log:         log,
		now:         time.Now,
	}
}

func (am *AuctionManager) SetClock(now func() time.Time) {
	am.now = now
}

// CreateAuction stores a draft auction. A parallel request also stores the
// partner with the complementary restriction, linked both ways, in the same tx.
func (am *AuctionManager) CreateAuction(ctx context.Context, p domain.Principal, cmd CreateAuctionCommand) (*domain.Auction, error) {
	if p.UserID == "" {
		return nil, domain.NewForbiddenError("Not authorized to create auctions")
	}
	am.applyDefaults(&cmd)
	if err := am.validateCreate(cmd); err != nil {
		return nil, err
	}

	now := am.now()
	primary := &domain.Auction{
		ID:                  utils.GenerateID("auction"),
		Title:               strings.TrimSpace(cmd.Title),
		Description:         cmd.Description,
		VehicleID:           cmd.VehicleID,
		CreatedBy:           p.UserID,
		StartTime:           cmd.StartTime,
		EndTime:             cmd.EndTime,
		StartingPrice:       cmd.StartingPrice,
		CurrentPrice:        cmd.StartingPrice,
		ReservePrice:        cmd.ReservePrice,
		MinimumBidIncrement: *cmd.MinimumBidIncrement,
		BidTimeBuffer:       *cmd.BidTimeBuffer,
		PricingCategory:     cmd.PricingCategory,
		UserType:            cmd.UserType,
		VisibilityType:      cmd.VisibilityType,
		Status:              domain.AuctionDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := am.applyFees(ctx, primary); err != nil {
		return nil, err
	}

	var secondary *domain.Auction
	if cmd.IsParallelAuction {
		complement, _ := cmd.UserType.Complement()
		secondary = primary.Clone()
		secondary.ID = utils.GenerateID("auction")
		secondary.UserType = complement
		if err := am.applyFees(ctx, secondary); err != nil {
			return nil, err
		}
		primary.IsParallelAuction, secondary.IsParallelAuction = true, true
		primary.ParallelAuctionID, secondary.ParallelAuctionID = secondary.ID, primary.ID
	}

	err := am.auctionRepo.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.InsertAuction(ctx, primary); err != nil {
			return err
		}
		if secondary != nil {
			return tx.InsertAuction(ctx, secondary)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	am.cacheStatus(ctx, primary, secondary)
	am.log.Info("Auction created", "auction_id", primary.ID, "parallel", cmd.IsParallelAuction,
		"partner_id", primary.ParallelAuctionID, "created_by", p.UserID)
	return primary, nil
}

func (am *AuctionManager) applyDefaults(cmd *CreateAuctionCommand) {
	if cmd.MinimumBidIncrement == nil {
		inc := am.rules.DefaultMinimumBidIncrement
		cmd.MinimumBidIncrement = &inc
	}
	if cmd.BidTimeBuffer == nil {
		buf := am.rules.DefaultBidTimeBuffer
		cmd.BidTimeBuffer = &buf
	}
	if cmd.PricingCategory == "" {
		cmd.PricingCategory = domain.PricingStandard
	}
	if cmd.UserType == "" {
		cmd.UserType = domain.UserTypeAll
	}
	if cmd.VisibilityType == "" {
		cmd.VisibilityType = domain.VisibilityVisible
	}
}

func (am *AuctionManager) validateCreate(cmd CreateAuctionCommand) error {
	if strings.TrimSpace(cmd.Title) == "" {
		return domain.NewValidationError("Please add a title")
	}
	if cmd.VehicleID == "" {
		return domain.NewValidationError("Please specify a vehicle")
	}
	if cmd.StartTime.IsZero() || cmd.EndTime.IsZero() {
		return domain.NewValidationError("Please add a start and end time")
	}
	if !cmd.UserType.IsValid() {
		return domain.NewValidationError("Invalid user type %q", cmd.UserType)
	}
	if !cmd.VisibilityType.IsValid() {
		return domain.NewValidationError("Invalid visibility type %q", cmd.VisibilityType)
	}
	if !cmd.PricingCategory.IsValid() {
		return domain.NewValidationError("Invalid pricing category %q", cmd.PricingCategory)
	}
	if cmd.IsParallelAuction {
		if _, ok := cmd.UserType.Complement(); !ok {
			return domain.NewValidationError("Parallel auctions must be dealers-only or individual-only")
		}
	}
	return am.validateTerms(cmd.StartTime, cmd.EndTime, cmd.StartingPrice, cmd.ReservePrice,
		*cmd.MinimumBidIncrement, *cmd.BidTimeBuffer)
}

// validateTerms checks the invariants every auction must hold after creation or edit.
func (am *AuctionManager) validateTerms(start, end time.Time, starting decimal.Decimal, reserve *decimal.Decimal, increment decimal.Decimal, buffer time.Duration) error {
	if !end.After(start) {
		return domain.NewValidationError("End time must be after start time")
	}
	if !starting.IsPositive() {
		return domain.NewValidationError("Starting price must be greater than zero")
	}
	if reserve != nil && reserve.LessThan(starting) {
		return domain.NewValidationError("Reserve price must be at least the starting price")
	}
	if !increment.IsPositive() {
		return domain.NewValidationError("Minimum bid increment must be greater than zero")
	}
	if buffer < am.rules.MinBidTimeBuffer || buffer > am.rules.MaxBidTimeBuffer {
		return domain.NewValidationError("Bid time buffer must be between %d and %d seconds",
			int(am.rules.MinBidTimeBuffer.Seconds()), int(am.rules.MaxBidTimeBuffer.Seconds()))
	}
	return nil
}

func (am *AuctionManager) applyFees(ctx context.Context, a *domain.Auction) error {
	if am.fees == nil {
		return nil
	}
	fees, found, err := am.fees.ResolveFees(ctx, a.UserType.FeeUserType(), a.PricingCategory)
	if err != nil {
		return fmt.Errorf("resolve fees: %w", err)
	}
	if found {
		a.BidFee = fees.BidFee
		a.DeliveryFee = fees.DeliveryFee
	}
	return nil
}

// GetAuction returns the auction if p may see it and counts the view.
func (am *AuctionManager) GetAuction(ctx context.Context, p domain.Principal, auctionID string) (*domain.Auction, error) {
	a, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !canView(p, a) {
		return nil, domain.NewForbiddenError("Not authorized to view this auction")
	}
	if err := am.auctionRepo.IncrementViews(ctx, a.ID); err != nil {
		am.log.Warn("Failed to count view", "auction_id", a.ID, "error", err)
	} else {
		a.Views++
	}
	return a, nil
}

// ListAuctions lists newest first. Non-admins only see auctions they are
// eligible for; anonymous callers only see unrestricted ones.
func (am *AuctionManager) ListAuctions(ctx context.Context, p domain.Principal, filter domain.AuctionFilter) ([]*domain.Auction, int, error) {
	switch {
	case p.UserID == "":
		filter.UserTypes = []domain.UserType{domain.UserTypeAll}
	case !p.IsAdmin():
		filter.UserTypes = domain.EligibleUserTypes(p.Role)
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	return am.auctionRepo.ListAuctions(ctx, filter)
}

// ListBids applies the auction's bid visibility for p.
func (am *AuctionManager) ListBids(ctx context.Context, p domain.Principal, auctionID string, offset, limit int) (*BidPage, error) {
	a, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !canView(p, a) {
		return nil, domain.NewForbiddenError("Not authorized to view this auction")
	}
	if limit <= 0 {
		limit = 20
	}

	privileged := a.CanManage(p)
	switch {
	case a.VisibilityType == domain.VisibilityHidden && !privileged:
		return nil, domain.NewForbiddenError("Bid history is not visible for this auction")
	case a.VisibilityType == domain.VisibilityLatestOnly && !privileged:
		latest, err := am.bidRepo.LatestBid(ctx, a.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &BidPage{Bids: []*domain.Bid{}, Limit: 1}, nil
			}
			return nil, err
		}
		return &BidPage{Bids: []*domain.Bid{latest}, Total: a.TotalBids, Limit: 1}, nil
	}

	bids, total, err := am.bidRepo.ListBids(ctx, a.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &BidPage{Bids: bids, Total: total, Offset: offset, Limit: limit}, nil
}

// UpdateAuction edits an auction that is not active or completed. Supplied
// timing and pricing fields are mirrored onto the partner; a status change
// goes through the transition table on both sides.
func (am *AuctionManager) UpdateAuction(ctx context.Context, p domain.Principal, auctionID string, cmd UpdateAuctionCommand) (*domain.Auction, error) {
	current, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !current.CanManage(p) {
		return nil, domain.NewForbiddenError("Not authorized to update this auction")
	}

	var updated, partner *domain.Auction
	err = am.auctionRepo.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, partnerLocked, err := lockPair(ctx, tx, current)
		if err != nil {
			return err
		}
		if a.Status == domain.AuctionActive || a.Status == domain.AuctionCompleted {
			return domain.NewTransitionError("update", a.Status)
		}
		// Timing and pricing are fixed once an auction has left draft.
		if cmd.Sync.HasTerms() && a.Status != domain.AuctionDraft {
			return domain.NewConflictError(fmt.Sprintf("Cannot change timing or pricing of %s auction", a.Status))
		}

		if cmd.Title != nil {
			if strings.TrimSpace(*cmd.Title) == "" {
				return domain.NewValidationError("Please add a title")
			}
			a.Title = strings.TrimSpace(*cmd.Title)
		}
		if cmd.Description != nil {
			a.Description = *cmd.Description
		}
		if cmd.VisibilityType != nil {
			if !cmd.VisibilityType.IsValid() {
				return domain.NewValidationError("Invalid visibility type %q", *cmd.VisibilityType)
			}
			a.VisibilityType = *cmd.VisibilityType
		}

		cmd.Sync.ApplyTo(a)
		if err := am.validateTerms(a.StartTime, a.EndTime, a.StartingPrice, a.ReservePrice,
			a.MinimumBidIncrement, a.BidTimeBuffer); err != nil {
			return err
		}

		now := am.now()
		if cmd.Sync.Status != nil && *cmd.Sync.Status != a.Status {
			target := *cmd.Sync.Status
			if !target.IsValid() {
				return domain.NewValidationError("Invalid status %q", target)
			}
			if err := checkTransition(a, target, now); err != nil {
				return err
			}
			if _, err := applyTransition(ctx, tx, am.resolver, a, target, now); err != nil {
				return err
			}
		} else {
			a.UpdatedAt = now
			if err := tx.UpdateAuction(ctx, a); err != nil {
				return err
			}
		}

		if partnerLocked != nil {
			if err := am.coordinator.MirrorSync(ctx, tx, partnerLocked, cmd.Sync, now); err != nil {
				return err
			}
			if cmd.Sync.Status != nil {
				if _, err := am.coordinator.MirrorTransition(ctx, tx, partnerLocked, *cmd.Sync.Status, now); err != nil {
					return err
				}
			}
		}
		updated, partner = a, partnerLocked
		return nil
	})
	if err != nil {
		return nil, err
	}

	am.cacheStatus(ctx, updated, partner)
	am.log.Info("Auction updated", "auction_id", updated.ID, "status", updated.Status)
	return updated, nil
}

// ActivateAuction opens a draft auction ahead of its scheduled start.
func (am *AuctionManager) ActivateAuction(ctx context.Context, p domain.Principal, auctionID string) (*domain.Auction, error) {
	return am.transition(ctx, p, auctionID, domain.AuctionActive)
}

// EndAuction closes an active auction now and resolves its winner.
func (am *AuctionManager) EndAuction(ctx context.Context, p domain.Principal, auctionID string) (*domain.Auction, error) {
	return am.transition(ctx, p, auctionID, domain.AuctionEnded)
}

func (am *AuctionManager) CompleteAuction(ctx context.Context, p domain.Principal, auctionID string) (*domain.Auction, error) {
	return am.transition(ctx, p, auctionID, domain.AuctionCompleted)
}

func (am *AuctionManager) CancelAuction(ctx context.Context, p domain.Principal, auctionID string) (*domain.Auction, error) {
	return am.transition(ctx, p, auctionID, domain.AuctionCancelled)
}

// DeleteAuction removes the auction, its linked partner and every bid on
// either. Active and completed auctions cannot be deleted.
func (am *AuctionManager) DeleteAuction(ctx context.Context, p domain.Principal, auctionID string) error {
	current, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !current.CanManage(p) {
		return domain.NewForbiddenError("Not authorized to delete this auction")
	}

	var deleted []string
	err = am.auctionRepo.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, partner, err := lockPair(ctx, tx, current)
		if err != nil {
			return err
		}
		pair := []*domain.Auction{a}
		if partner != nil {
			pair = append(pair, partner)
		}
		for _, x := range pair {
			if x.Status == domain.AuctionActive || x.Status == domain.AuctionCompleted {
				return domain.NewTransitionError("delete", x.Status)
			}
		}
		for _, x := range pair {
			if err := tx.DeleteAuction(ctx, x.ID); err != nil {
				return fmt.Errorf("delete auction %s: %w", x.ID, err)
			}
			deleted = append(deleted, x.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	am.log.Info("Auction deleted", "auction_id", auctionID, "deleted", deleted, "by", p.UserID)
	return nil
}

// checkTransition validates a caller-initiated move of a to target: the
// transition table first, then the target's own guard.
func checkTransition(a *domain.Auction, target domain.AuctionStatus, now time.Time) error {
	if !a.Status.CanTransitionTo(target) {
		return domain.NewTransitionError(verbFor(target), a.Status)
	}
	switch target {
	case domain.AuctionActive:
		// Manual activation only opens an auction ahead of its start; a lapsed
		// draft is left to the scheduler.
		if !a.StartTime.After(now) {
			return domain.NewValidationError("Start time must be in the future")
		}
	}
	return nil
}

type transitionResult struct {
	auction    *domain.Auction
	resolution *Resolution
	mirror     *MirroredTransition
}

// transition runs a caller-initiated lifecycle move: creator-or-admin gate,
// legality, the guard, the move and its mirror, all under one tx.
func (am *AuctionManager) transition(ctx context.Context, p domain.Principal, auctionID string, target domain.AuctionStatus) (*domain.Auction, error) {
	current, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	verb := verbFor(target)
	if !current.CanManage(p) {
		return nil, domain.NewForbiddenError(fmt.Sprintf("Not authorized to %s this auction", verb))
	}

	var out transitionResult
	err = am.auctionRepo.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, partner, err := lockPair(ctx, tx, current)
		if err != nil {
			return err
		}
		now := am.now()
		if err := checkTransition(a, target, now); err != nil {
			return err
		}
		out, err = am.applyWithMirror(ctx, tx, a, partner, target, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	am.afterTransition(ctx, out)
	am.log.Info("Auction transitioned", "auction_id", out.auction.ID, "status", target, "by", p.UserID)
	return out.auction, nil
}

func (am *AuctionManager) applyWithMirror(ctx context.Context, tx domain.Tx, a, partner *domain.Auction, target domain.AuctionStatus, now time.Time) (transitionResult, error) {
	res, err := applyTransition(ctx, tx, am.resolver, a, target, now)
	if err != nil {
		return transitionResult{}, err
	}
	out := transitionResult{auction: a, resolution: res}
	if partner != nil {
		mirror, err := am.coordinator.MirrorTransition(ctx, tx, partner, target, now)
		if err != nil {
			return transitionResult{}, err
		}
		out.mirror = mirror
	}
	return out, nil
}

// StartDueAuction activates a draft whose start time has arrived. It is a
// no-op when the auction already left draft.
func (am *AuctionManager) StartDueAuction(ctx context.Context, auctionID string) (bool, error) {
	return am.systemTransition(ctx, auctionID, domain.AuctionDraft, domain.AuctionActive, func(a *domain.Auction, now time.Time) bool {
		return !a.StartTime.After(now)
	})
}

// ExpireAuction ends an active auction whose end time has passed. An
// extension that moved the end time past now makes it a no-op.
func (am *AuctionManager) ExpireAuction(ctx context.Context, auctionID string) (bool, error) {
	return am.systemTransition(ctx, auctionID, domain.AuctionActive, domain.AuctionEnded, func(a *domain.Auction, now time.Time) bool {
		return !a.EndTime.After(now)
	})
}

func (am *AuctionManager) systemTransition(ctx context.Context, auctionID string, from, target domain.AuctionStatus, due func(a *domain.Auction, now time.Time) bool) (bool, error) {
	current, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}

	applied := false
	var out transitionResult
	err = am.auctionRepo.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, partner, err := lockPair(ctx, tx, current)
		if err != nil {
			return err
		}
		now := am.now()
		if a.Status != from || !due(a, now) {
			return nil
		}
		out, err = am.applyWithMirror(ctx, tx, a, partner, target, now)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil || !applied {
		return false, err
	}

	am.afterTransition(ctx, out)
	am.log.Info("Auction transitioned by scheduler", "auction_id", auctionID, "status", target)
	return true, nil
}

// afterTransition refreshes the status cache and announces results once the
// tx has committed.
func (am *AuctionManager) afterTransition(ctx context.Context, out transitionResult) {
	var partner *domain.Auction
	if out.mirror != nil {
		partner = out.mirror.Partner
	}
	am.cacheStatus(ctx, out.auction, partner)

	am.announceResolution(out.auction, out.resolution)
	if out.mirror != nil {
		am.announceResolution(out.mirror.Partner, out.mirror.Resolution)
	}
}

func (am *AuctionManager) announceResolution(a *domain.Auction, res *Resolution) {
	if res == nil {
		return
	}
	now := am.now()
	notes := []domain.Notification{{
		Event:       domain.EventAuctionEnded,
		RecipientID: a.CreatedBy,
		AuctionID:   a.ID,
		Amount:      a.CurrentPrice.String(),
		Reason:      string(res.Outcome),
		OccurredAt:  now,
	}}
	switch res.Outcome {
	case OutcomeReserveNotMet:
		notes = append(notes, domain.Notification{
			Event:       domain.EventReserveNotMet,
			RecipientID: a.CreatedBy,
			AuctionID:   a.ID,
			Amount:      res.Bid.Amount.String(),
			OccurredAt:  now,
		})
	case OutcomeWinnerSelected:
		notes = append(notes, domain.Notification{
			Event:       domain.EventWinnerSelected,
			RecipientID: a.CreatedBy,
			AuctionID:   a.ID,
			Amount:      res.Bid.Amount.String(),
			OccurredAt:  now,
		})
	}
	am.sink.Dispatch(notes...)
}

// GetWinner is visible to the creator, an admin or the winner.
func (am *AuctionManager) GetWinner(ctx context.Context, p domain.Principal, auctionID string) (*WinnerInfo, error) {
	a, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	isWinner := a.Winner != nil && a.Winner.UserID == p.UserID && p.UserID != ""
	if !a.CanManage(p) && !isWinner {
		return nil, domain.NewForbiddenError("Not authorized to view winner information")
	}
	if a.Winner == nil {
		return nil, &domain.Error{Kind: domain.KindNotFound, Message: "No winner has been determined for this auction"}
	}
	bid, err := am.bidRepo.GetBid(ctx, a.Winner.BidID)
	if err != nil {
		return nil, notFound(err, "Winning bid")
	}
	return &WinnerInfo{Winner: *a.Winner, WinningBid: bid}, nil
}

// NotifyWinner claims the auction's notified flag, then sends. A failed
// send releases the claim so it can be retried.
func (am *AuctionManager) NotifyWinner(ctx context.Context, p domain.Principal, auctionID string) (*domain.Winner, error) {
	a, err := am.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanManage(p) {
		return nil, domain.NewForbiddenError("Not authorized to notify winner")
	}
	if a.Winner == nil {
		return nil, &domain.Error{Kind: domain.KindNotFound, Message: "No winner has been determined for this auction"}
	}

	now := am.now()
	claimed, err := am.auctionRepo.ClaimWinnerNotification(ctx, a.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domain.NewConflictError("Winner has already been notified")
	}

	bid, err := am.bidRepo.GetBid(ctx, a.Winner.BidID)
	if err != nil {
		am.releaseClaim(ctx, a.ID)
		return nil, notFound(err, "Winning bid")
	}
	err = am.notifier.Notify(ctx, domain.Notification{
		Event:       domain.EventWinnerNotification,
		RecipientID: a.Winner.UserID,
		AuctionID:   a.ID,
		Amount:      bid.Amount.String(),
		OccurredAt:  now,
	})
	if err != nil {
		am.releaseClaim(ctx, a.ID)
		am.log.Error("Failed to notify winner", "auction_id", a.ID, "winner_id", a.Winner.UserID, "error", err)
		return nil, fmt.Errorf("failed to send notification to winner: %w", err)
	}

	w := *a.Winner
	w.Notified = true
	w.NotifiedAt = &now
	am.log.Info("Winner notified", "auction_id", a.ID, "winner_id", w.UserID)
	return &w, nil
}

func (am *AuctionManager) releaseClaim(ctx context.Context, auctionID string) {
	if err := am.auctionRepo.ReleaseWinnerNotification(ctx, auctionID); err != nil {
		am.log.Error("Failed to release winner notification claim", "auction_id", auctionID, "error", err)
	}
}

func (am *AuctionManager) loadAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	a, err := am.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, notFound(err, "Auction")
	}
	return a, nil
}

func (am *AuctionManager) cacheStatus(ctx context.Context, auctions ...*domain.Auction) {
	if am.stateCache == nil {
		return
	}
	for _, a := range auctions {
		if a == nil {
			continue
		}
		if err := am.stateCache.SetAuctionStatus(ctx, a.ID, a.Status); err != nil {
			am.log.Warn("Failed to cache auction status", "auction_id", a.ID, "error", err)
		}
	}
}

// lockPair locks a and its partner in id order and returns their fresh state.
// The partner is nil for unlinked auctions or a dangling link.
func lockPair(ctx context.Context, tx domain.Tx, a *domain.Auction) (*domain.Auction, *domain.Auction, error) {
	ids := []string{a.ID}
	if a.IsLinked() {
		ids = append(ids, a.ParallelAuctionID)
	}
	locked, err := tx.LockAuctions(ctx, ids...)
	if err != nil {
		return nil, nil, err
	}
	fresh, ok := locked[a.ID]
	if !ok {
		return nil, nil, domain.NewNotFoundError("Auction")
	}
	var partner *domain.Auction
	if a.IsLinked() {
		partner = locked[a.ParallelAuctionID]
	}
	return fresh, partner, nil
}

// canView applies the restriction as a visibility rule. Admins see
// everything; anonymous callers only see unrestricted auctions.
func canView(p domain.Principal, a *domain.Auction) bool {
	if p.IsAdmin() || (p.UserID != "" && a.IsOwnedBy(p)) {
		return true
	}
	if p.UserID == "" {
		return a.UserType == domain.UserTypeAll
	}
	return domain.IsEligible(p.Role, a.UserType)
}

func verbFor(target domain.AuctionStatus) string {
	switch target {
	case domain.AuctionActive:
		return "activate"
	case domain.AuctionEnded:
		return "end"
	case domain.AuctionCompleted:
		return "complete"
	case domain.AuctionCancelled:
		return "cancel"
	default:
		return "update"
	}
}
