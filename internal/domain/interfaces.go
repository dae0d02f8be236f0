package domain

import (
	"context"
	"time"
)

// AuctionFilter narrows ListAuctions. Zero values mean "any".
type AuctionFilter struct {
	Status    AuctionStatus
	UserTypes []UserType
	CreatedBy string
	Offset    int
	Limit     int
}

// Repository interfaces
type AuctionRepository interface {
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	ListAuctions(ctx context.Context, filter AuctionFilter) ([]*Auction, int, error)
	IncrementViews(ctx context.Context, auctionID string) error

	// ClaimWinnerNotification flips winner.notified from false to true and
	// reports whether this call did it.
	ClaimWinnerNotification(ctx context.Context, auctionID string, at time.Time) (bool, error)
	ReleaseWinnerNotification(ctx context.Context, auctionID string) error

	// WithinTx runs fn as one atomic unit. Locks taken through the Tx are
	// held until fn returns; a non-nil error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of the store. Every mutation of an existing auction
// or its bids must happen after LockAuctions has returned that auction.
type Tx interface {
	// LockAuctions locks the given auctions in ascending id order and returns
	// their current state. Unknown ids are absent from the result.
	LockAuctions(ctx context.Context, auctionIDs ...string) (map[string]*Auction, error)
	InsertAuction(ctx context.Context, auction *Auction) error
	UpdateAuction(ctx context.Context, auction *Auction) error
	// DeleteAuction removes the auction together with all of its bids.
	DeleteAuction(ctx context.Context, auctionID string) error
	InsertBid(ctx context.Context, bid *Bid) error
	UpdateBid(ctx context.Context, bid *Bid) error
	// TransitionBids moves every bid of the auction in status from to status
	// to and returns the bids it changed.
	TransitionBids(ctx context.Context, auctionID string, from, to BidStatus) ([]*Bid, error)
	// HighestValidBid orders by amount desc, created_at asc, id asc. Returns
	// nil when there is no valid bid.
	HighestValidBid(ctx context.Context, auctionID string) (*Bid, error)
}

type BidRepository interface {
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	// ListBids returns bids newest first along with the total count.
	ListBids(ctx context.Context, auctionID string, offset, limit int) ([]*Bid, int, error)
	LatestBid(ctx context.Context, auctionID string) (*Bid, error)
	ListBidderIDs(ctx context.Context, auctionID string) ([]string, error)
}

type SchedulerRepository interface {
	DueForActivation(ctx context.Context, now time.Time) ([]string, error)
	DueForExpiry(ctx context.Context, now time.Time) ([]string, error)
	// EndingSoon lists active auctions ending in (now, until] that have not
	// had their ending-soon notice sent.
	EndingSoon(ctx context.Context, now, until time.Time) ([]*Auction, error)
	MarkEndingSoonNotified(ctx context.Context, auctionID string, at time.Time) (bool, error)
	// LinkedOpen lists linked auctions that are not yet completed or cancelled.
	LinkedOpen(ctx context.Context) ([]string, error)
}

//go:generate mockgen -destination=mock/notifier.go -package=mock auction-engine/internal/domain Notifier,FeeResolver,AuctionStateCache

// Cache interfaces
type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, bool, error)
}

// FeeResolver looks up the bid and delivery fee for an audience ("all",
// "dealer", "individual", ...) and pricing category. found is false when
// the schedule has no entry, not even a fallback one.
type FeeResolver interface {
	ResolveFees(ctx context.Context, audience string, category PricingCategory) (fees Fees, found bool, err error)
}

// Notification interfaces
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotificationHandler func(n *Notification) error

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler NotificationHandler) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
