package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuctionFilterClause(t *testing.T) {
	where, args := auctionFilterClause(domain.AuctionFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = auctionFilterClause(domain.AuctionFilter{
		Status:    domain.AuctionActive,
		UserTypes: []domain.UserType{domain.UserTypeAll, domain.UserTypeDealersOnly},
	})
	assert.Equal(t, " WHERE status = ? AND user_type IN (?, ?)", where)
	assert.Equal(t, []interface{}{"active", "all", "dealers-only"}, args)
}

func TestAuctionArgsMatchColumns(t *testing.T) {
	a := &domain.Auction{ID: "a1", Views: 7, CreatedAt: time.Unix(1, 0)}
	args := auctionArgs(a)

	assert.Len(t, args, 30, "every column but id")
	assert.Equal(t, 7, args[argViews])
	assert.Equal(t, a.CreatedAt, args[argCreatedAt])
}

// openTestDB connects to MYSQL_TEST_DSN and migrates it. Tests using it are
// skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))

	_, err = db.Exec(`DELETE FROM bids`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM auctions`)
	require.NoError(t, err)
	return db
}

func TestMySQLRepositories_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	auctions := NewMySQLAuctionRepository(db)
	bids := NewMySQLBidRepository(db)
	scheduler := NewMySQLSchedulerRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	reserve := decimal.NewFromInt(5000)
	a := &domain.Auction{
		ID: "a1", Title: "Car", VehicleID: "v1", CreatedBy: "seller",
		StartTime: now.Add(-time.Minute), EndTime: now.Add(30 * time.Minute),
		StartingPrice: decimal.NewFromInt(1000), CurrentPrice: decimal.NewFromInt(1000),
		ReservePrice: &reserve, MinimumBidIncrement: decimal.NewFromInt(100),
		BidTimeBuffer: 40 * time.Second, PricingCategory: domain.PricingStandard,
		UserType: domain.UserTypeAll, VisibilityType: domain.VisibilityVisible,
		Status: domain.AuctionActive, CreatedAt: now, UpdatedAt: now,
	}

	err := auctions.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.InsertAuction(ctx, a)
	})
	require.NoError(t, err)

	err = auctions.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		locked, err := tx.LockAuctions(ctx, "a1", "missing")
		if err != nil {
			return err
		}
		require.Len(t, locked, 1)
		got := locked["a1"]
		if err := tx.InsertBid(ctx, &domain.Bid{ID: "b1", AuctionID: "a1", UserID: "u1",
			Amount: decimal.NewFromInt(1200), Status: domain.BidValid, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		got.CurrentPrice = decimal.NewFromInt(1200)
		got.TotalBids = 1
		return tx.UpdateAuction(ctx, got)
	})
	require.NoError(t, err)

	stored, err := auctions.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(1200)))
	assert.True(t, stored.ReservePrice.Equal(reserve))
	assert.Equal(t, 40*time.Second, stored.BidTimeBuffer)
	assert.Equal(t, domain.UserTypeAll, stored.UserType)

	latest, err := bids.LatestBid(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "b1", latest.ID)

	ending, err := scheduler.EndingSoon(ctx, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, ending, 1)
	claimed, err := scheduler.MarkEndingSoonNotified(ctx, "a1", now)
	require.NoError(t, err)
	assert.True(t, claimed)

	_, err = auctions.GetAuction(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = auctions.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.LockAuctions(ctx, "a1"); err != nil {
			return err
		}
		return tx.DeleteAuction(ctx, "a1")
	})
	require.NoError(t, err)
	_, err = auctions.GetAuction(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = bids.GetBid(ctx, "b1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
