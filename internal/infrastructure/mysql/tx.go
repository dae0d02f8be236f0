package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Positions in auctionArgs that UpdateAuction does not write.
const (
	argViews     = 25
	argCreatedAt = 28
)

type mysqlTx struct {
	tx  *sql.Tx
	now func() time.Time
}

// LockAuctions takes row locks with SELECT ... FOR UPDATE. Rows are locked in
// primary key order, so two transactions locking the same pair cannot deadlock.
func (t *mysqlTx) LockAuctions(ctx context.Context, auctionIDs ...string) (map[string]*domain.Auction, error) {
	if len(auctionIDs) == 0 {
		return map[string]*domain.Auction{}, nil
	}
	ids := append([]string(nil), auctionIDs...)
	sort.Strings(ids)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id FOR UPDATE`
	auctions, err := queryAuctions(ctx, t.tx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lock auctions: %w", err)
	}

	out := make(map[string]*domain.Auction, len(auctions))
	for _, a := range auctions {
		out[a.ID] = a
	}
	return out, nil
}

func (t *mysqlTx) InsertAuction(ctx context.Context, a *domain.Auction) error {
	query := `INSERT INTO auctions (` + auctionColumns + `) VALUES (` + placeholders(31) + `)`
	args := append([]interface{}{a.ID}, auctionArgs(a)...)
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// UpdateAuction writes every mutable column. views is left alone since it
// is counted outside transactions.
func (t *mysqlTx) UpdateAuction(ctx context.Context, a *domain.Auction) error {
	query := `
        UPDATE auctions SET
            title = ?, description = ?, vehicle_id = ?, created_by = ?,
            start_time = ?, end_time = ?, actual_end_time = ?,
            starting_price = ?, current_price = ?, reserve_price = ?, minimum_bid_increment = ?, bid_time_buffer_seconds = ?,
            bid_fee = ?, delivery_fee = ?, pricing_category = ?, user_type = ?, visibility_type = ?, status = ?,
            is_parallel_auction = ?, parallel_auction_id = ?, winner_user_id = ?, winning_bid_id = ?, winner_notified = ?, winner_notified_at = ?,
            total_bids = ?, extensions = ?, ending_soon_notified_at = ?, updated_at = ?
        WHERE id = ?
    `
	cols := auctionArgs(a)
	args := make([]interface{}, 0, len(cols))
	for i, v := range cols {
		if i == argViews || i == argCreatedAt {
			continue
		}
		args = append(args, v)
	}
	args = append(args, a.ID)

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteAuction removes the bids first to satisfy fk_bids_auction.
func (t *mysqlTx) DeleteAuction(ctx context.Context, auctionID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM bids WHERE auction_id = ?`, auctionID); err != nil {
		return fmt.Errorf("delete bids: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM auctions WHERE id = ?`, auctionID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *mysqlTx) InsertBid(ctx context.Context, b *domain.Bid) error {
	query := `INSERT INTO bids (` + bidColumns + `) VALUES (` + placeholders(13) + `)`
	_, err := t.tx.ExecContext(ctx, query,
		b.ID, b.AuctionID, b.UserID, b.Amount, b.BidFee, b.IsAutoBid, b.IsWinningBid,
		string(b.Status), string(b.InvalidReason), b.IP, b.UserAgent, b.CreatedAt, b.UpdatedAt)
	return err
}

func (t *mysqlTx) UpdateBid(ctx context.Context, b *domain.Bid) error {
	query := `
        UPDATE bids SET status = ?, invalid_reason = ?, is_winning_bid = ?, updated_at = ?
        WHERE id = ?
    `
	res, err := t.tx.ExecContext(ctx, query,
		string(b.Status), string(b.InvalidReason), b.IsWinningBid, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *mysqlTx) TransitionBids(ctx context.Context, auctionID string, from, to domain.BidStatus) ([]*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = ? AND status = ? FOR UPDATE`
	bids, err := queryBids(ctx, t.tx, query, auctionID, string(from))
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, nil
	}

	now := t.now()
	_, err = t.tx.ExecContext(ctx,
		`UPDATE bids SET status = ?, updated_at = ? WHERE auction_id = ? AND status = ?`,
		string(to), now, auctionID, string(from))
	if err != nil {
		return nil, err
	}
	for _, b := range bids {
		b.Status = to
		b.UpdatedAt = now
	}
	return bids, nil
}

func (t *mysqlTx) HighestValidBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + ` FROM bids
        WHERE auction_id = ? AND status = ?
        ORDER BY amount DESC, created_at ASC, id ASC
        LIMIT 1
    `
	b, err := scanBid(t.tx.QueryRowContext(ctx, query, auctionID, string(domain.BidValid)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}
