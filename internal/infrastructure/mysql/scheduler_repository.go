package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"time"
)

type MySQLSchedulerRepository struct {
	db *sql.DB
}

func NewMySQLSchedulerRepository(db *sql.DB) *MySQLSchedulerRepository {
	return &MySQLSchedulerRepository{db: db}
}

func (r *MySQLSchedulerRepository) DueForActivation(ctx context.Context, now time.Time) ([]string, error) {
	query := `SELECT id FROM auctions WHERE status = ? AND start_time <= ? ORDER BY id`
	return r.queryIDs(ctx, query, string(domain.AuctionDraft), now)
}

func (r *MySQLSchedulerRepository) DueForExpiry(ctx context.Context, now time.Time) ([]string, error) {
	query := `SELECT id FROM auctions WHERE status = ? AND end_time <= ? ORDER BY id`
	return r.queryIDs(ctx, query, string(domain.AuctionActive), now)
}

func (r *MySQLSchedulerRepository) EndingSoon(ctx context.Context, now, until time.Time) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + ` FROM auctions
        WHERE status = ? AND ending_soon_notified_at IS NULL
          AND end_time > ? AND end_time <= ?
        ORDER BY id
    `
	return queryAuctions(ctx, r.db, query, string(domain.AuctionActive), now, until)
}

func (r *MySQLSchedulerRepository) MarkEndingSoonNotified(ctx context.Context, auctionID string, at time.Time) (bool, error) {
	query := `UPDATE auctions SET ending_soon_notified_at = ? WHERE id = ? AND ending_soon_notified_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, at, auctionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *MySQLSchedulerRepository) LinkedOpen(ctx context.Context) ([]string, error) {
	query := `
        SELECT id FROM auctions
        WHERE is_parallel_auction = TRUE AND parallel_auction_id IS NOT NULL
          AND status NOT IN (?, ?)
        ORDER BY id
    `
	return r.queryIDs(ctx, query, string(domain.AuctionCompleted), string(domain.AuctionCancelled))
}

func (r *MySQLSchedulerRepository) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
