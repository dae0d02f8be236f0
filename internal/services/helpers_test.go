package services

import (
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/pkg/logger"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSink collects dispatched notifications synchronously.
type recordingSink struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (s *recordingSink) Dispatch(notifications ...domain.Notification) {
	s.mu.Lock()
	s.notes = append(s.notes, notifications...)
	s.mu.Unlock()
}

func (s *recordingSink) byEvent(event domain.NotificationEvent) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notes {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	notes []domain.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notes = append(n.notes, note)
	return nil
}

type engine struct {
	store       *memory.Store
	clock       *fakeClock
	sink        *recordingSink
	notifier    *recordingNotifier
	bids        *BidService
	manager     *AuctionManager
	coordinator *ParallelCoordinator
	scheduler   *AuctionScheduler
}

var testRules = AuctionRules{
	DefaultMinimumBidIncrement: decimal.NewFromInt(500),
	DefaultBidTimeBuffer:       40 * time.Second,
	MinBidTimeBuffer:           15 * time.Second,
	MaxBidTimeBuffer:           120 * time.Second,
}

func newEngine(t *testing.T) *engine {
	return newEngineWithFees(t, NewStaticFeeSchedule(DefaultFeeEntries()))
}

func newEngineWithFees(t *testing.T, fees domain.FeeResolver) *engine {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	clock := newFakeClock(t0)
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	extension := NewExtensionPolicy(0)
	resolver := NewWinnerResolver()

	coordinator := NewParallelCoordinator(store, extension, resolver, log)
	coordinator.SetClock(clock.Now)

	bids := NewBidService(store, store, nil, fees, coordinator, extension, sink, log)
	bids.SetClock(clock.Now)

	manager := NewAuctionManager(store, store, nil, fees, coordinator, resolver, sink, notifier, testRules, log)
	manager.SetClock(clock.Now)

	scheduler := NewAuctionScheduler(store, store, manager, coordinator, sink, nil, "test-instance", SchedulerSpecs{
		EndingSoonWindow: time.Hour,
	}, log)
	scheduler.SetClock(clock.Now)

	return &engine{
		store:       store,
		clock:       clock,
		sink:        sink,
		notifier:    notifier,
		bids:        bids,
		manager:     manager,
		coordinator: coordinator,
		scheduler:   scheduler,
	}
}

// activeAuction is an open, unrestricted auction that started a minute ago.
func activeAuction(id string) *domain.Auction {
	return &domain.Auction{
		ID:                  id,
		Title:               "2019 Volvo V60",
		VehicleID:           "veh-" + id,
		CreatedBy:           "seller",
		StartTime:           t0.Add(-time.Minute),
		EndTime:             t0.Add(time.Hour),
		StartingPrice:       decimal.NewFromInt(1000),
		CurrentPrice:        decimal.NewFromInt(1000),
		MinimumBidIncrement: decimal.NewFromInt(100),
		BidTimeBuffer:       40 * time.Second,
		BidFee:              decimal.NewFromInt(30),
		PricingCategory:     domain.PricingStandard,
		UserType:            domain.UserTypeAll,
		VisibilityType:      domain.VisibilityVisible,
		Status:              domain.AuctionActive,
		CreatedAt:           t0.Add(-time.Hour),
		UpdatedAt:           t0.Add(-time.Hour),
	}
}

// linkedPair returns two active auctions linked to each other.
func linkedPair(primaryID, secondaryID string) (*domain.Auction, *domain.Auction) {
	p := activeAuction(primaryID)
	p.UserType = domain.UserTypeDealersOnly
	p.IsParallelAuction = true
	p.ParallelAuctionID = secondaryID

	s := activeAuction(secondaryID)
	s.UserType = domain.UserTypeIndividualOnly
	s.IsParallelAuction = true
	s.ParallelAuctionID = primaryID
	return p, s
}

func (e *engine) seed(t *testing.T, auctions ...*domain.Auction) {
	t.Helper()
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for _, a := range auctions {
			if err := tx.InsertAuction(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (e *engine) auction(t *testing.T, id string) *domain.Auction {
	t.Helper()
	a, err := e.store.GetAuction(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *engine) allBids(t *testing.T, auctionID string) []*domain.Bid {
	t.Helper()
	bids, _, err := e.store.ListBids(context.Background(), auctionID, 0, 0)
	require.NoError(t, err)
	return bids
}

func (e *engine) bid(t *testing.T, auctionID, userID string, role domain.Role, amount int64) (*domain.Bid, error) {
	t.Helper()
	return e.bids.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: auctionID,
		Bidder:    domain.Principal{UserID: userID, Role: role},
		Amount:    decimal.NewFromInt(amount),
		IP:        "10.0.0.1",
		UserAgent: "test",
	})
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}
