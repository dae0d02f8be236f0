package services

import (
	"auction-engine/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func autoBids(bids []*domain.Bid) []*domain.Bid {
	var out []*domain.Bid
	for _, b := range bids {
		if b.IsAutoBid {
			out = append(out, b)
		}
	}
	return out
}

func TestMirrorBid_KeepsPairInStep(t *testing.T) {
	e := newEngine(t)
	p, s := linkedPair("p1", "s1")
	e.seed(t, p, s)

	placed, err := e.bid(t, "p1", "dave", domain.RoleDealer, 1500)
	require.NoError(t, err)

	primary, secondary := e.auction(t, "p1"), e.auction(t, "s1")
	assert.True(t, primary.CurrentPrice.Equal(dec(1500)))
	assert.True(t, secondary.CurrentPrice.Equal(dec(1500)))
	assert.Equal(t, 1, primary.TotalBids)
	assert.Equal(t, 1, secondary.TotalBids)

	assert.Empty(t, autoBids(e.allBids(t, "p1")), "origin gets no auto bid back")
	mirrored := autoBids(e.allBids(t, "s1"))
	require.Len(t, mirrored, 1)
	auto := mirrored[0]
	assert.Equal(t, "dave", auto.UserID)
	assert.True(t, auto.Amount.Equal(placed.Amount))
	assert.True(t, auto.BidFee.IsZero())
	assert.Equal(t, domain.BidValid, auto.Status)
	assert.Equal(t, "System generated bid", auto.UserAgent)
	assert.Equal(t, placed.IP, auto.IP)
}

func TestMirrorBid_OutbidsPartnerLeader(t *testing.T) {
	e := newEngine(t)
	p, s := linkedPair("p1", "s1")
	e.seed(t, p, s)

	first, err := e.bid(t, "s1", "ivy", domain.RoleIndividual, 1200)
	require.NoError(t, err)
	_, err = e.bid(t, "p1", "dave", domain.RoleDealer, 1300)
	require.NoError(t, err)

	stored, err := e.store.GetBid(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidOutbid, stored.Status)

	outbid := e.sink.byEvent(domain.EventOutbid)
	require.Len(t, outbid, 2)
	assert.Equal(t, "ivy", outbid[0].RecipientID)
	assert.Equal(t, "p1", outbid[0].AuctionID, "displaced auto bid")
	assert.Equal(t, "ivy", outbid[1].RecipientID)
	assert.Equal(t, "s1", outbid[1].AuctionID)

	// the partner's minimum now follows the mirrored price
	_, err = e.bid(t, "s1", "ivy", domain.RoleIndividual, 1350)
	requireKind(t, err, domain.KindBelowMinimumIncrement)
	assert.Equal(t, "Bid must be at least 1400", err.Error())
}

func TestMirrorBid_ExtendsPartnerByItsOwnBuffer(t *testing.T) {
	e := newEngine(t)
	p, s := linkedPair("p1", "s1")
	p.EndTime = t0.Add(10 * time.Second)
	s.EndTime = t0.Add(10 * time.Second)
	s.BidTimeBuffer = 60 * time.Second
	e.seed(t, p, s)

	_, err := e.bid(t, "p1", "dave", domain.RoleDealer, 1100)
	require.NoError(t, err)

	assert.Equal(t, t0.Add(50*time.Second), e.auction(t, "p1").EndTime)
	assert.Equal(t, t0.Add(70*time.Second), e.auction(t, "s1").EndTime)
}

func TestMirrorBid_SkipsInactivePartner(t *testing.T) {
	e := newEngine(t)
	p, s := linkedPair("p1", "s1")
	s.Status = domain.AuctionCancelled
	e.seed(t, p, s)

	_, err := e.bid(t, "p1", "dave", domain.RoleDealer, 1100)
	require.NoError(t, err)

	secondary := e.auction(t, "s1")
	assert.True(t, secondary.CurrentPrice.Equal(dec(1000)))
	assert.Equal(t, 0, secondary.TotalBids)
	assert.Empty(t, e.allBids(t, "s1"))
}

func TestMirrorBid_ConcurrentBidsOnBothSides(t *testing.T) {
	e := newEngine(t)
	p, s := linkedPair("p1", "s1")
	e.seed(t, p, s)

	done := make(chan struct{})
	for i := 1; i <= 10; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			_, _ = e.bid(t, "p1", "dealer", domain.RoleDealer, int64(1000+i*200))
		}(i)
		go func(i int) {
			defer func() { done <- struct{}{} }()
			_, _ = e.bid(t, "s1", "person", domain.RoleIndividual, int64(1100+i*200))
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	primary, secondary := e.auction(t, "p1"), e.auction(t, "s1")
	assert.True(t, primary.CurrentPrice.Equal(secondary.CurrentPrice), "%s vs %s", primary.CurrentPrice, secondary.CurrentPrice)
	assert.Equal(t, primary.TotalBids, secondary.TotalBids)
}

func TestMirrorTransition_EndAndCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("ending one side ends the other", func(t *testing.T) {
		e := newEngine(t)
		p, s := linkedPair("p1", "s1")
		e.seed(t, p, s)
		_, err := e.bid(t, "s1", "ivy", domain.RoleIndividual, 1500)
		require.NoError(t, err)

		_, err = e.manager.EndAuction(ctx, seller, "p1")
		require.NoError(t, err)

		primary, secondary := e.auction(t, "p1"), e.auction(t, "s1")
		assert.Equal(t, domain.AuctionEnded, primary.Status)
		assert.Equal(t, domain.AuctionEnded, secondary.Status)
		require.NotNil(t, primary.Winner)
		require.NotNil(t, secondary.Winner)
		assert.Equal(t, "ivy", primary.Winner.UserID, "auto bid wins the partner")
		assert.Equal(t, "ivy", secondary.Winner.UserID)
		assert.Len(t, e.sink.byEvent(domain.EventAuctionEnded), 2)
	})

	t.Run("cancelling one side cancels the other", func(t *testing.T) {
		e := newEngine(t)
		p, s := linkedPair("p1", "s1")
		e.seed(t, p, s)
		_, err := e.bid(t, "p1", "dave", domain.RoleDealer, 1500)
		require.NoError(t, err)

		_, err = e.manager.CancelAuction(ctx, seller, "s1")
		require.NoError(t, err)

		for _, id := range []string{"p1", "s1"} {
			assert.Equal(t, domain.AuctionCancelled, e.auction(t, id).Status)
			for _, b := range e.allBids(t, id) {
				assert.Equal(t, domain.BidCancelled, b.Status)
			}
		}
	})

	t.Run("illegal move on partner is skipped", func(t *testing.T) {
		e := newEngine(t)
		p, s := linkedPair("p1", "s1")
		s.Status = domain.AuctionCompleted
		e.seed(t, p, s)

		_, err := e.manager.CancelAuction(ctx, seller, "p1")
		require.NoError(t, err)

		assert.Equal(t, domain.AuctionCancelled, e.auction(t, "p1").Status)
		assert.Equal(t, domain.AuctionCompleted, e.auction(t, "s1").Status)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("walks lagging status forward", func(t *testing.T) {
		e := newEngine(t)
		p, s := linkedPair("p1", "s1")
		s.Status = domain.AuctionDraft
		p.Status = domain.AuctionEnded
		e.seed(t, p, s)

		changed, err := e.coordinator.Reconcile(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.AuctionEnded, e.auction(t, "s1").Status)

		changed, err = e.coordinator.Reconcile(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("cancelled side wins", func(t *testing.T) {
		e := newEngine(t)
		p, s := linkedPair("p1", "s1")
		p.Status = domain.AuctionCancelled
		e.seed(t, p, s)

		changed, err := e.coordinator.Reconcile(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.AuctionCancelled, e.auction(t, "s1").Status)
	})

	t.Run("replays the higher price", func(t *testing.T) {
		e := newEngine(t)
		p, s := linkedPair("p1", "s1")
		s.Status = domain.AuctionCancelled
		s.EndTime = t0.Add(10 * time.Second)
		e.seed(t, p, s)
		_, err := e.bid(t, "p1", "dave", domain.RoleDealer, 2000)
		require.NoError(t, err)

		// simulate drift: partner was reopened out of band
		err = e.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			locked, err := tx.LockAuctions(ctx, "s1")
			if err != nil {
				return err
			}
			locked["s1"].Status = domain.AuctionActive
			return tx.UpdateAuction(ctx, locked["s1"])
		})
		require.NoError(t, err)

		changed, err := e.coordinator.Reconcile(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, changed)

		secondary := e.auction(t, "s1")
		assert.True(t, secondary.CurrentPrice.Equal(dec(2000)))
		assert.Equal(t, t0.Add(10*time.Second), secondary.EndTime, "reconcile never extends")
		require.Len(t, autoBids(e.allBids(t, "s1")), 1)
	})

	t.Run("one-sided link is reported", func(t *testing.T) {
		e := newEngine(t)
		p := activeAuction("p1")
		p.IsParallelAuction = true
		p.ParallelAuctionID = "ghost"
		e.seed(t, p)

		_, err := e.coordinator.Reconcile(ctx, "p1")
		assert.ErrorIs(t, err, errOneSidedLink)
	})

	t.Run("unlinked auction is ignored", func(t *testing.T) {
		e := newEngine(t)
		e.seed(t, activeAuction("a1"))

		changed, err := e.coordinator.Reconcile(ctx, "a1")
		require.NoError(t, err)
		assert.False(t, changed)
	})
}
