package mysql

import (
	"auction-engine/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const auctionColumns = `id, title, description, vehicle_id, created_by,
        start_time, end_time, actual_end_time,
        starting_price, current_price, reserve_price, minimum_bid_increment, bid_time_buffer_seconds,
        bid_fee, delivery_fee, pricing_category, user_type, visibility_type, status,
        is_parallel_auction, parallel_auction_id, winner_user_id, winning_bid_id, winner_notified, winner_notified_at,
        total_bids, views, extensions, ending_soon_notified_at, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type MySQLAuctionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db, now: time.Now}
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	a, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *MySQLAuctionRepository) ListAuctions(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, int, error) {
	where, args := auctionFilterClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count auctions: %w", err)
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions` + where + ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	auctions, err := queryAuctions(ctx, r.db, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return auctions, total, nil
}

// auctionFilterClause renders filter as a WHERE clause with placeholders.
func auctionFilterClause(filter domain.AuctionFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if len(filter.UserTypes) > 0 {
		conds = append(conds, "user_type IN ("+placeholders(len(filter.UserTypes))+")")
		for _, ut := range filter.UserTypes {
			args = append(args, string(ut))
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *MySQLAuctionRepository) IncrementViews(ctx context.Context, auctionID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE auctions SET views = views + 1 WHERE id = ?`, auctionID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *MySQLAuctionRepository) ClaimWinnerNotification(ctx context.Context, auctionID string, at time.Time) (bool, error) {
	query := `
        UPDATE auctions SET winner_notified = TRUE, winner_notified_at = ?
        WHERE id = ? AND winning_bid_id IS NOT NULL AND winner_notified = FALSE
    `
	res, err := r.db.ExecContext(ctx, query, at, auctionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, r.exists(ctx, auctionID)
	}
	return true, nil
}

func (r *MySQLAuctionRepository) ReleaseWinnerNotification(ctx context.Context, auctionID string) error {
	query := `UPDATE auctions SET winner_notified = FALSE, winner_notified_at = NULL WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, auctionID)
	return err
}

func (r *MySQLAuctionRepository) exists(ctx context.Context, auctionID string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM auctions WHERE id = ?`, auctionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// WithinTx runs fn in a read-committed transaction. Row locks taken by
// LockAuctions are held until commit or rollback.
func (r *MySQLAuctionRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &mysqlTx{tx: sqlTx, now: r.now}); err != nil {
		return multierr.Append(err, sqlTx.Rollback())
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func queryAuctions(ctx context.Context, q querier, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		a                                    domain.Auction
		actualEnd, notifiedAt, endingSoonAt  sql.NullTime
		reserve                              decimal.NullDecimal
		bufferSeconds                        int64
		parallelID, winnerUserID, winningBid sql.NullString
		winnerNotified                       bool
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.VehicleID, &a.CreatedBy,
		&a.StartTime, &a.EndTime, &actualEnd,
		&a.StartingPrice, &a.CurrentPrice, &reserve, &a.MinimumBidIncrement, &bufferSeconds,
		&a.BidFee, &a.DeliveryFee, &a.PricingCategory, &a.UserType, &a.VisibilityType, &a.Status,
		&a.IsParallelAuction, &parallelID, &winnerUserID, &winningBid, &winnerNotified, &notifiedAt,
		&a.TotalBids, &a.Views, &a.Extensions, &endingSoonAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ActualEndTime = timePtr(actualEnd)
	a.EndingSoonNotifiedAt = timePtr(endingSoonAt)
	if reserve.Valid {
		a.ReservePrice = &reserve.Decimal
	}
	a.BidTimeBuffer = time.Duration(bufferSeconds) * time.Second
	a.ParallelAuctionID = parallelID.String
	if winningBid.Valid {
		a.Winner = &domain.Winner{
			UserID:     winnerUserID.String,
			BidID:      winningBid.String,
			Notified:   winnerNotified,
			NotifiedAt: timePtr(notifiedAt),
		}
	}
	return &a, nil
}

// auctionArgs returns the column values in auctionColumns order, minus id.
func auctionArgs(a *domain.Auction) []interface{} {
	var reserve decimal.NullDecimal
	if a.ReservePrice != nil {
		reserve = decimal.NullDecimal{Decimal: *a.ReservePrice, Valid: true}
	}
	var winnerUserID, winningBid sql.NullString
	var notified bool
	var notifiedAt *time.Time
	if a.Winner != nil {
		winnerUserID = sql.NullString{String: a.Winner.UserID, Valid: true}
		winningBid = sql.NullString{String: a.Winner.BidID, Valid: true}
		notified = a.Winner.Notified
		notifiedAt = a.Winner.NotifiedAt
	}
	return []interface{}{
		a.Title, a.Description, a.VehicleID, a.CreatedBy,
		a.StartTime, a.EndTime, nullTime(a.ActualEndTime),
		a.StartingPrice, a.CurrentPrice, reserve, a.MinimumBidIncrement, int64(a.BidTimeBuffer / time.Second),
		a.BidFee, a.DeliveryFee, string(a.PricingCategory), string(a.UserType), string(a.VisibilityType), string(a.Status),
		a.IsParallelAuction, nullString(a.ParallelAuctionID), winnerUserID, winningBid, notified, nullTime(notifiedAt),
		a.TotalBids, a.Views, a.Extensions, nullTime(a.EndingSoonNotifiedAt), a.CreatedAt, a.UpdatedAt,
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
