package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const bidColumns = `id, auction_id, user_id, amount, bid_fee, is_auto_bid, is_winning_bid,
        status, invalid_reason, ip_address, user_agent, created_at, updated_at`

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	b, err := scanBid(r.db.QueryRowContext(ctx, query, bidID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

func (r *MySQLBidRepository) ListBids(ctx context.Context, auctionID string, offset, limit int) ([]*domain.Bid, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bids: %w", err)
	}

	query := `
        SELECT ` + bidColumns + ` FROM bids
        WHERE auction_id = ?
        ORDER BY created_at DESC, id DESC
    `
	args := []interface{}{auctionID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	bids, err := queryBids(ctx, r.db, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return bids, total, nil
}

func (r *MySQLBidRepository) LatestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + ` FROM bids
        WHERE auction_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `
	b, err := scanBid(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

// ListBidderIDs returns the distinct users who bid themselves, in order of
// their first bid.
func (r *MySQLBidRepository) ListBidderIDs(ctx context.Context, auctionID string) ([]string, error) {
	query := `
        SELECT user_id FROM bids
        WHERE auction_id = ? AND is_auto_bid = FALSE
        GROUP BY user_id
        ORDER BY MIN(created_at) ASC
    `
	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryBids(ctx context.Context, q querier, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var b domain.Bid
	err := row.Scan(&b.ID, &b.AuctionID, &b.UserID, &b.Amount, &b.BidFee, &b.IsAutoBid, &b.IsWinningBid,
		&b.Status, &b.InvalidReason, &b.IP, &b.UserAgent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
