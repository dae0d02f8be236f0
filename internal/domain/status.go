package domain

type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "draft"
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCompleted AuctionStatus = "completed"
	AuctionCancelled AuctionStatus = "cancelled"
)

// auctionTransitions lists the legal next states for each status.
var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionDraft:     {AuctionActive, AuctionCancelled},
	AuctionActive:    {AuctionEnded, AuctionCancelled},
	AuctionEnded:     {AuctionCompleted, AuctionCancelled},
	AuctionCompleted: nil,
	AuctionCancelled: nil,
}

func (s AuctionStatus) String() string {
	return string(s)
}

func (s AuctionStatus) IsValid() bool {
	_, ok := auctionTransitions[s]
	return ok
}

func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionCompleted || s == AuctionCancelled
}

// IsClosed reports whether the auction can never accept bids again.
func (s AuctionStatus) IsClosed() bool {
	return s == AuctionEnded || s.IsTerminal()
}

func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	for _, allowed := range auctionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidValid     BidStatus = "valid"
	BidInvalid   BidStatus = "invalid"
	BidOutbid    BidStatus = "outbid"
	BidWinning   BidStatus = "winning"
	BidCancelled BidStatus = "cancelled"
)

func (s BidStatus) String() string {
	return string(s)
}

// InvalidReason mirrors the bids.invalid_reason column. Rejected bids are
// returned as errors and never stored, so the engine leaves it empty.
type InvalidReason string

type VisibilityType string

const (
	VisibilityVisible    VisibilityType = "visible"
	VisibilityLatestOnly VisibilityType = "latest-only"
	VisibilityHidden     VisibilityType = "hidden"
)

func (v VisibilityType) IsValid() bool {
	switch v {
	case VisibilityVisible, VisibilityLatestOnly, VisibilityHidden:
		return true
	default:
		return false
	}
}

type PricingCategory string

const (
	PricingStandard PricingCategory = "standard"
	PricingPremium  PricingCategory = "premium"
	PricingDealer   PricingCategory = "dealer"
)

func (c PricingCategory) IsValid() bool {
	switch c {
	case PricingStandard, PricingPremium, PricingDealer:
		return true
	default:
		return false
	}
}
