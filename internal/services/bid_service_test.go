package services

import (
	"auction-engine/internal/domain"
	"auction-engine/internal/domain/mock"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPlaceBid_IncrementRule(t *testing.T) {
	e := newEngine(t)
	e.seed(t, activeAuction("a1"))

	b1, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)
	assert.Equal(t, domain.BidValid, b1.Status)
	assert.True(t, e.auction(t, "a1").CurrentPrice.Equal(dec(1100)))

	_, err = e.bid(t, "a1", "bob", domain.RoleIndividual, 1150)
	requireKind(t, err, domain.KindBelowMinimumIncrement)
	assert.Equal(t, "Bid must be at least 1200", err.Error())

	b3, err := e.bid(t, "a1", "bob", domain.RoleIndividual, 1250)
	require.NoError(t, err)

	a := e.auction(t, "a1")
	assert.True(t, a.CurrentPrice.Equal(dec(1250)))
	assert.Equal(t, 2, a.TotalBids)

	first, err := e.store.GetBid(context.Background(), b1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidOutbid, first.Status)

	latest, err := e.store.GetBid(context.Background(), b3.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidValid, latest.Status)
}

func TestPlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *domain.Auction)
		role    domain.Role
		amount  int64
		want    domain.ErrorKind
		wantMsg string
	}{
		{
			name:   "draft auction",
			mutate: func(a *domain.Auction) { a.Status = domain.AuctionDraft },
			role:   domain.RoleIndividual, amount: 2000,
			want: domain.KindNotAcceptingBids,
		},
		{
			name:   "not started yet",
			mutate: func(a *domain.Auction) { a.StartTime = t0.Add(time.Minute) },
			role:   domain.RoleIndividual, amount: 2000,
			want: domain.KindNotAcceptingBids,
		},
		{
			name:   "end time passed but not yet ended",
			mutate: func(a *domain.Auction) { a.EndTime = t0 },
			role:   domain.RoleIndividual, amount: 2000,
			want: domain.KindNotAcceptingBids,
		},
		{
			name:   "individual on dealers-only",
			mutate: func(a *domain.Auction) { a.UserType = domain.UserTypeDealersOnly },
			role:   domain.RoleIndividual, amount: 2000,
			want: domain.KindNotEligible,
		},
		{
			name:   "dealer on individual-only",
			mutate: func(a *domain.Auction) { a.UserType = domain.UserTypeIndividualOnly },
			role:   domain.RoleDealer, amount: 2000,
			want: domain.KindNotEligible,
		},
		{
			name:   "eligibility checked before increment",
			mutate: func(a *domain.Auction) { a.UserType = domain.UserTypeDealersOnly },
			role:   domain.RoleCompany, amount: 1001,
			want: domain.KindNotEligible,
		},
		{
			name:   "below increment",
			mutate: func(a *domain.Auction) {},
			role:   domain.RoleCompany, amount: 1099,
			want:    domain.KindBelowMinimumIncrement,
			wantMsg: "Bid must be at least 1100",
		},
		{
			name:   "non-positive amount",
			mutate: func(a *domain.Auction) {},
			role:   domain.RoleIndividual, amount: 0,
			want: domain.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			a := activeAuction("a1")
			tt.mutate(a)
			e.seed(t, a)

			_, err := e.bid(t, "a1", "u1", tt.role, tt.amount)
			requireKind(t, err, tt.want)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}

			after := e.auction(t, "a1")
			assert.Equal(t, 0, after.TotalBids)
			assert.True(t, after.CurrentPrice.Equal(a.CurrentPrice))
			assert.Empty(t, e.allBids(t, "a1"))
		})
	}
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	e := newEngine(t)

	_, err := e.bid(t, "missing", "u1", domain.RoleIndividual, 5000)
	requireKind(t, err, domain.KindNotFound)
}

func TestPlaceBid_ExtendsInsideBuffer(t *testing.T) {
	e := newEngine(t)
	a := activeAuction("a1")
	a.EndTime = t0.Add(10 * time.Second)
	e.seed(t, a)

	_, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)

	after := e.auction(t, "a1")
	assert.Equal(t, t0.Add(50*time.Second), after.EndTime)
	assert.Equal(t, 1, after.Extensions)
	assert.Len(t, e.sink.byEvent(domain.EventAuctionExtended), 1)
}

func TestPlaceBid_NoExtensionOutsideBuffer(t *testing.T) {
	e := newEngine(t)
	e.seed(t, activeAuction("a1"))

	_, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Hour), e.auction(t, "a1").EndTime)
	assert.Empty(t, e.sink.byEvent(domain.EventAuctionExtended))
}

func TestPlaceBid_Notifications(t *testing.T) {
	e := newEngine(t)
	e.seed(t, activeAuction("a1"))

	_, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)
	_, err = e.bid(t, "a1", "alice", domain.RoleIndividual, 1200)
	require.NoError(t, err)
	_, err = e.bid(t, "a1", "bob", domain.RoleIndividual, 1300)
	require.NoError(t, err)

	placed := e.sink.byEvent(domain.EventBidPlaced)
	require.Len(t, placed, 3)
	assert.Equal(t, "seller", placed[2].RecipientID)
	assert.Equal(t, "1300", placed[2].Amount)

	// raising your own bid does not outbid you
	outbid := e.sink.byEvent(domain.EventOutbid)
	require.Len(t, outbid, 1)
	assert.Equal(t, "alice", outbid[0].RecipientID)
}

func TestPlaceBid_UsesScheduleFeeOrFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	fees := mock.NewMockFeeResolver(ctrl)

	gomock.InOrder(
		fees.EXPECT().ResolveFees(gomock.Any(), "dealer", domain.PricingStandard).
			Return(domain.Fees{BidFee: dec(15)}, true, nil),
		fees.EXPECT().ResolveFees(gomock.Any(), "individual", domain.PricingStandard).
			Return(domain.Fees{}, false, nil),
		fees.EXPECT().ResolveFees(gomock.Any(), "company", domain.PricingStandard).
			Return(domain.Fees{}, false, errors.New("redis down")),
	)

	e := newEngineWithFees(t, fees)
	e.seed(t, activeAuction("a1"))

	b1, err := e.bid(t, "a1", "d1", domain.RoleDealer, 1100)
	require.NoError(t, err)
	assert.True(t, b1.BidFee.Equal(dec(15)))

	b2, err := e.bid(t, "a1", "i1", domain.RoleIndividual, 1200)
	require.NoError(t, err)
	assert.True(t, b2.BidFee.Equal(dec(30)), "falls back to auction fee")

	b3, err := e.bid(t, "a1", "c1", domain.RoleCompany, 1300)
	require.NoError(t, err)
	assert.True(t, b3.BidFee.Equal(dec(30)), "lookup error falls back to auction fee")
}

func TestPlaceBid_StateCacheFastReject(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mock.NewMockAuctionStateCache(ctrl)
	cache.EXPECT().GetAuctionStatus(gomock.Any(), "a1").Return(domain.AuctionEnded, true, nil)

	e := newEngine(t)
	e.bids.stateCache = cache
	e.seed(t, activeAuction("a1"))

	_, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	requireKind(t, err, domain.KindNotAcceptingBids)
}

func TestPlaceBid_StateCacheMissFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mock.NewMockAuctionStateCache(ctrl)
	cache.EXPECT().GetAuctionStatus(gomock.Any(), "a1").Return(domain.AuctionStatus(""), false, nil)

	e := newEngine(t)
	e.bids.stateCache = cache
	e.seed(t, activeAuction("a1"))

	_, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)
}

func TestPlaceBid_StaleDraftInCacheFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mock.NewMockAuctionStateCache(ctrl)
	cache.EXPECT().GetAuctionStatus(gomock.Any(), "a1").Return(domain.AuctionDraft, true, nil)
	cache.EXPECT().SetAuctionStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	e := newEngine(t)
	e.bids.stateCache = cache
	e.seed(t, activeAuction("a1"))

	bid, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)
	assert.Equal(t, domain.BidValid, bid.Status)
}

func TestPlaceBid_StateCacheErrorFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mock.NewMockAuctionStateCache(ctrl)
	cache.EXPECT().GetAuctionStatus(gomock.Any(), "a1").Return(domain.AuctionStatus(""), false, errors.New("redis down"))
	cache.EXPECT().SetAuctionStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	e := newEngine(t)
	e.bids.stateCache = cache
	e.seed(t, activeAuction("a1"))

	_, err := e.bid(t, "a1", "alice", domain.RoleIndividual, 1100)
	require.NoError(t, err)
}

func TestPlaceBid_ConcurrentSameAmount(t *testing.T) {
	e := newEngine(t)
	e.seed(t, activeAuction("a1"))

	const bidders = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.bid(t, "a1", "u"+string(rune('a'+i)), domain.RoleIndividual, 1100)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.Equal(t, domain.KindBelowMinimumIncrement, domain.KindOf(err))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	a := e.auction(t, "a1")
	assert.Equal(t, 1, a.TotalBids)
	assert.True(t, a.CurrentPrice.Equal(dec(1100)))
}

func TestPlaceBid_ConcurrentRisingAmounts(t *testing.T) {
	e := newEngine(t)
	e.seed(t, activeAuction("a1"))

	var wg sync.WaitGroup
	for i := 1; i <= 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = e.bid(t, "a1", "u"+string(rune('a'+i)), domain.RoleIndividual, int64(1000+i*100))
		}(i)
	}
	wg.Wait()

	a := e.auction(t, "a1")
	bids := e.allBids(t, "a1")
	require.Len(t, bids, a.TotalBids)

	valid := 0
	max := dec(0)
	for _, b := range bids {
		if b.Status == domain.BidValid {
			valid++
		}
		if b.Amount.GreaterThan(max) {
			max = b.Amount
		}
	}
	assert.Equal(t, 1, valid, "exactly one valid bid survives")
	assert.True(t, a.CurrentPrice.Equal(max), "price equals the highest accepted amount")
}

func TestPlaceBid_RacesAuctionClose(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		close func(t *testing.T, e *engine)
	}{
		{"end", func(t *testing.T, e *engine) {
			e.clock.Advance(time.Second)
			_, err := e.manager.EndAuction(ctx, seller, "a1")
			require.NoError(t, err)
		}},
		{"expire", func(t *testing.T, e *engine) {
			e.clock.Advance(time.Hour + time.Second)
			applied, err := e.manager.ExpireAuction(ctx, "a1")
			require.NoError(t, err)
			require.True(t, applied)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t)
			e.seed(t, activeAuction("a1"))

			const bidders = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				accepted  = map[string]int64{}
				next      int64
				firstOnce sync.Once
				firstBid  = make(chan struct{})
			)
			for i := 0; i < bidders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					user := "u" + string(rune('a'+i))
					for n := 0; n < 500; n++ {
						amount := 1000 + 100*atomic.AddInt64(&next, 1)
						b, err := e.bid(t, "a1", user, domain.RoleIndividual, amount)
						if err == nil {
							mu.Lock()
							accepted[b.ID] = amount
							mu.Unlock()
							firstOnce.Do(func() { close(firstBid) })
							continue
						}
						kind := domain.KindOf(err)
						if kind == domain.KindNotAcceptingBids {
							return
						}
						assert.Equal(t, domain.KindBelowMinimumIncrement, kind)
					}
				}(i)
			}

			<-firstBid
			tc.close(t, e)
			wg.Wait()

			_, err := e.bid(t, "a1", "late", domain.RoleIndividual, 1_000_000)
			requireKind(t, err, domain.KindNotAcceptingBids)

			a := e.auction(t, "a1")
			require.Equal(t, domain.AuctionEnded, a.Status)
			require.NotNil(t, a.ActualEndTime)

			bids := e.allBids(t, "a1")
			require.Len(t, bids, len(accepted), "every stored bid was admitted and every admitted bid is stored")
			assert.Equal(t, len(accepted), a.TotalBids)

			var highest int64
			for _, amount := range accepted {
				if amount > highest {
					highest = amount
				}
			}
			require.NotNil(t, a.Winner)
			assert.Equal(t, highest, accepted[a.Winner.BidID], "winner holds the highest admitted bid")
			assert.True(t, a.CurrentPrice.Equal(dec(highest)))

			for _, b := range bids {
				assert.Contains(t, accepted, b.ID)
				assert.False(t, b.CreatedAt.After(*a.ActualEndTime), "bid %s created after close", b.ID)
				assert.NotEqual(t, domain.BidValid, b.Status, "bid %s still valid after close", b.ID)
				if b.ID == a.Winner.BidID {
					assert.Equal(t, domain.BidWinning, b.Status)
				} else {
					assert.Equal(t, domain.BidOutbid, b.Status)
				}
			}
		})
	}
}
