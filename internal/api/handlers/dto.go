package handlers

import (
	"auction-engine/internal/domain"
	"auction-engine/internal/services"
	"time"

	"github.com/shopspring/decimal"
)

type CreateAuctionRequest struct {
	Title                string           `json:"title" validate:"required,max=255"`
	Description          string           `json:"description" validate:"max=5000"`
	VehicleID            string           `json:"vehicle_id" validate:"required"`
	StartTime            *time.Time       `json:"start_time" validate:"required"`
	EndTime              *time.Time       `json:"end_time" validate:"required"`
	StartingPrice        *decimal.Decimal `json:"starting_price" validate:"required"`
	ReservePrice         *decimal.Decimal `json:"reserve_price"`
	MinimumBidIncrement  *decimal.Decimal `json:"minimum_bid_increment"`
	BidTimeBufferSeconds *int             `json:"bid_time_buffer_seconds" validate:"omitempty,min=0"`
	PricingCategory      string           `json:"pricing_category" validate:"omitempty,oneof=standard premium dealer"`
	UserType             string           `json:"user_type" validate:"omitempty,oneof=all dealers-only individual-only"`
	VisibilityType       string           `json:"visibility_type" validate:"omitempty,oneof=visible latest-only hidden"`
	IsParallelAuction    bool             `json:"is_parallel_auction"`
}

func (r CreateAuctionRequest) toCommand() services.CreateAuctionCommand {
	cmd := services.CreateAuctionCommand{
		Title:               r.Title,
		Description:         r.Description,
		VehicleID:           r.VehicleID,
		StartTime:           *r.StartTime,
		EndTime:             *r.EndTime,
		StartingPrice:       *r.StartingPrice,
		ReservePrice:        r.ReservePrice,
		MinimumBidIncrement: r.MinimumBidIncrement,
		BidTimeBuffer:       seconds(r.BidTimeBufferSeconds),
		PricingCategory:     domain.PricingCategory(r.PricingCategory),
		UserType:            domain.UserType(r.UserType),
		VisibilityType:      domain.VisibilityType(r.VisibilityType),
		IsParallelAuction:   r.IsParallelAuction,
	}
	return cmd
}

type UpdateAuctionRequest struct {
	Title                *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Description          *string          `json:"description" validate:"omitempty,max=5000"`
	VisibilityType       *string          `json:"visibility_type" validate:"omitempty,oneof=visible latest-only hidden"`
	StartTime            *time.Time       `json:"start_time"`
	EndTime              *time.Time       `json:"end_time"`
	StartingPrice        *decimal.Decimal `json:"starting_price"`
	ReservePrice         *decimal.Decimal `json:"reserve_price"`
	MinimumBidIncrement  *decimal.Decimal `json:"minimum_bid_increment"`
	BidTimeBufferSeconds *int             `json:"bid_time_buffer_seconds" validate:"omitempty,min=0"`
	Status               *string          `json:"status" validate:"omitempty,oneof=draft active ended completed cancelled"`
}

func (r UpdateAuctionRequest) toCommand() services.UpdateAuctionCommand {
	cmd := services.UpdateAuctionCommand{
		Title:       r.Title,
		Description: r.Description,
		Sync: domain.AuctionSyncFields{
			StartTime:           r.StartTime,
			EndTime:             r.EndTime,
			StartingPrice:       r.StartingPrice,
			ReservePrice:        r.ReservePrice,
			MinimumBidIncrement: r.MinimumBidIncrement,
			BidTimeBuffer:       seconds(r.BidTimeBufferSeconds),
		},
	}
	if r.VisibilityType != nil {
		v := domain.VisibilityType(*r.VisibilityType)
		cmd.VisibilityType = &v
	}
	if r.Status != nil {
		s := domain.AuctionStatus(*r.Status)
		cmd.Sync.Status = &s
	}
	return cmd
}

type PlaceBidRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

type WinnerResponse struct {
	UserID     string       `json:"user_id"`
	BidID      string       `json:"bid_id"`
	Notified   bool         `json:"notified"`
	NotifiedAt *time.Time   `json:"notified_at,omitempty"`
	WinningBid *BidResponse `json:"winning_bid,omitempty"`
}

type AuctionResponse struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	VehicleID            string           `json:"vehicle_id"`
	CreatedBy            string           `json:"created_by"`
	StartTime            time.Time        `json:"start_time"`
	EndTime              time.Time        `json:"end_time"`
	ActualEndTime        *time.Time       `json:"actual_end_time,omitempty"`
	StartingPrice        decimal.Decimal  `json:"starting_price"`
	CurrentPrice         decimal.Decimal  `json:"current_price"`
	ReservePrice         *decimal.Decimal `json:"reserve_price,omitempty"`
	MinimumBidIncrement  decimal.Decimal  `json:"minimum_bid_increment"`
	BidTimeBufferSeconds int              `json:"bid_time_buffer_seconds"`
	BidFee               decimal.Decimal  `json:"bid_fee"`
	DeliveryFee          decimal.Decimal  `json:"delivery_fee"`
	PricingCategory      string           `json:"pricing_category"`
	UserType             string           `json:"user_type"`
	VisibilityType       string           `json:"visibility_type"`
	Status               string           `json:"status"`
	IsParallelAuction    bool             `json:"is_parallel_auction"`
	ParallelAuctionID    string           `json:"parallel_auction_id,omitempty"`
	Winner               *WinnerResponse  `json:"winner,omitempty"`
	TotalBids            int              `json:"total_bids"`
	Views                int              `json:"views"`
	Extensions           int              `json:"extensions"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// newAuctionResponse hides the reserve and the winner from callers who
// cannot manage the auction.
func newAuctionResponse(a *domain.Auction, p domain.Principal) AuctionResponse {
	resp := AuctionResponse{
		ID:                   a.ID,
		Title:                a.Title,
		Description:          a.Description,
		VehicleID:            a.VehicleID,
		CreatedBy:            a.CreatedBy,
		StartTime:            a.StartTime,
		EndTime:              a.EndTime,
		ActualEndTime:        a.ActualEndTime,
		StartingPrice:        a.StartingPrice,
		CurrentPrice:         a.CurrentPrice,
		MinimumBidIncrement:  a.MinimumBidIncrement,
		BidTimeBufferSeconds: int(a.BidTimeBuffer / time.Second),
		BidFee:               a.BidFee,
		DeliveryFee:          a.DeliveryFee,
		PricingCategory:      string(a.PricingCategory),
		UserType:             string(a.UserType),
		VisibilityType:       string(a.VisibilityType),
		Status:               string(a.Status),
		IsParallelAuction:    a.IsParallelAuction,
		ParallelAuctionID:    a.ParallelAuctionID,
		TotalBids:            a.TotalBids,
		Views:                a.Views,
		Extensions:           a.Extensions,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
	if a.CanManage(p) {
		resp.ReservePrice = a.ReservePrice
		if a.Winner != nil {
			resp.Winner = newWinnerResponse(*a.Winner, nil)
		}
	}
	return resp
}

func newWinnerResponse(w domain.Winner, bid *domain.Bid) *WinnerResponse {
	resp := &WinnerResponse{
		UserID:     w.UserID,
		BidID:      w.BidID,
		Notified:   w.Notified,
		NotifiedAt: w.NotifiedAt,
	}
	if bid != nil {
		b := newBidResponse(bid)
		resp.WinningBid = &b
	}
	return resp
}

type BidResponse struct {
	ID            string          `json:"id"`
	AuctionID     string          `json:"auction_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	BidFee        decimal.Decimal `json:"bid_fee"`
	IsAutoBid     bool            `json:"is_auto_bid"`
	IsWinningBid  bool            `json:"is_winning_bid"`
	Status        string          `json:"status"`
	InvalidReason string          `json:"invalid_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		ID:            b.ID,
		AuctionID:     b.AuctionID,
		UserID:        b.UserID,
		Amount:        b.Amount,
		BidFee:        b.BidFee,
		IsAutoBid:     b.IsAutoBid,
		IsWinningBid:  b.IsWinningBid,
		Status:        string(b.Status),
		InvalidReason: string(b.InvalidReason),
		CreatedAt:     b.CreatedAt,
	}
}

type PageResponse struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

func seconds(n *int) *time.Duration {
	if n == nil {
		return nil
	}
	d := time.Duration(*n) * time.Second
	return &d
}
