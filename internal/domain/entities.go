package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID          string
	Title       string
	Description string
	VehicleID   string
	CreatedBy   string

	StartTime     time.Time
	EndTime       time.Time
	ActualEndTime *time.Time

	StartingPrice       decimal.Decimal
	CurrentPrice        decimal.Decimal
	ReservePrice        *decimal.Decimal
	MinimumBidIncrement decimal.Decimal
	BidTimeBuffer       time.Duration
	BidFee              decimal.Decimal
	DeliveryFee         decimal.Decimal
	PricingCategory     PricingCategory

	UserType       UserType
	VisibilityType VisibilityType
	Status         AuctionStatus

	IsParallelAuction bool
	ParallelAuctionID string

	Winner *Winner

	TotalBids  int
	Views      int
	Extensions int

	EndingSoonNotifiedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsBiddable reports whether a bid may be admitted at now.
func (a *Auction) IsBiddable(now time.Time) bool {
	return a.Status == AuctionActive && !a.StartTime.After(now) && a.EndTime.After(now)
}

// MinimumAcceptableBid is the lowest amount the next bid may carry.
func (a *Auction) MinimumAcceptableBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinimumBidIncrement)
}

func (a *Auction) MeetsMinimumIncrement(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(a.MinimumAcceptableBid())
}

func (a *Auction) MeetsReservePrice(amount decimal.Decimal) bool {
	if a.ReservePrice == nil {
		return true
	}
	return amount.GreaterThanOrEqual(*a.ReservePrice)
}

// IsLinked reports whether the auction has a parallel partner.
func (a *Auction) IsLinked() bool {
	return a.IsParallelAuction && a.ParallelAuctionID != ""
}

func (a *Auction) IsOwnedBy(p Principal) bool {
	return a.CreatedBy == p.UserID
}

// CanManage is the creator-or-admin gate shared by every lifecycle operation.
func (a *Auction) CanManage(p Principal) bool {
	return a.IsOwnedBy(p) || p.IsAdmin()
}

func (a *Auction) Clone() *Auction {
	c := *a
	if a.ActualEndTime != nil {
		t := *a.ActualEndTime
		c.ActualEndTime = &t
	}
	if a.ReservePrice != nil {
		r := *a.ReservePrice
		c.ReservePrice = &r
	}
	if a.Winner != nil {
		w := *a.Winner
		if a.Winner.NotifiedAt != nil {
			t := *a.Winner.NotifiedAt
			w.NotifiedAt = &t
		}
		c.Winner = &w
	}
	if a.EndingSoonNotifiedAt != nil {
		t := *a.EndingSoonNotifiedAt
		c.EndingSoonNotifiedAt = &t
	}
	return &c
}

type Winner struct {
	UserID     string
	BidID      string
	Notified   bool
	NotifiedAt *time.Time
}

type Bid struct {
	ID            string
	AuctionID     string
	UserID        string
	Amount        decimal.Decimal
	BidFee        decimal.Decimal
	IsAutoBid     bool
	IsWinningBid  bool
	Status        BidStatus
	InvalidReason InvalidReason
	IP            string
	UserAgent     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Bid) Clone() *Bid {
	c := *b
	return &c
}

// AuctionSyncFields is the closed set of fields mirrored onto a parallel
// partner when an auction is edited. A nil field was not supplied.
type AuctionSyncFields struct {
	StartTime           *time.Time
	EndTime             *time.Time
	StartingPrice       *decimal.Decimal
	ReservePrice        *decimal.Decimal
	MinimumBidIncrement *decimal.Decimal
	BidTimeBuffer       *time.Duration
	Status              *AuctionStatus
}

func (f AuctionSyncFields) IsEmpty() bool {
	return f.StartTime == nil && f.EndTime == nil && f.StartingPrice == nil &&
		f.ReservePrice == nil && f.MinimumBidIncrement == nil &&
		f.BidTimeBuffer == nil && f.Status == nil
}

// HasTerms reports whether any timing or pricing field was supplied.
func (f AuctionSyncFields) HasTerms() bool {
	f.Status = nil
	return !f.IsEmpty()
}

// ApplyTo copies the supplied non-status fields onto a.
func (f AuctionSyncFields) ApplyTo(a *Auction) {
	if f.StartTime != nil {
		a.StartTime = *f.StartTime
	}
	if f.EndTime != nil {
		a.EndTime = *f.EndTime
	}
	if f.StartingPrice != nil {
		a.StartingPrice = *f.StartingPrice
		// Draft and cancelled auctions carry no bids, so the price follows the start.
		if a.TotalBids == 0 {
			a.CurrentPrice = *f.StartingPrice
		}
	}
	if f.ReservePrice != nil {
		r := *f.ReservePrice
		a.ReservePrice = &r
	}
	if f.MinimumBidIncrement != nil {
		a.MinimumBidIncrement = *f.MinimumBidIncrement
	}
	if f.BidTimeBuffer != nil {
		a.BidTimeBuffer = *f.BidTimeBuffer
	}
}

type Fees struct {
	BidFee      decimal.Decimal
	DeliveryFee decimal.Decimal
}

type Notification struct {
	Event       NotificationEvent `json:"event"`
	RecipientID string            `json:"recipient_id"`
	AuctionID   string            `json:"auction_id"`
	Amount      string            `json:"amount,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

type NotificationEvent string

const (
	EventBidPlaced          NotificationEvent = "bid_placed"
	EventOutbid             NotificationEvent = "outbid"
	EventAuctionExtended    NotificationEvent = "auction_extended"
	EventAuctionEndingSoon  NotificationEvent = "auction_ending_soon"
	EventAuctionEnded       NotificationEvent = "auction_ended"
	EventReserveNotMet      NotificationEvent = "reserve_not_met"
	EventWinnerSelected     NotificationEvent = "winner_selected"
	EventWinnerNotification NotificationEvent = "winner_notification"
)
