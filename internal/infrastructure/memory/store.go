package memory

import (
	"auction-engine/internal/domain"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store keeps auctions and bids in process. Writes made through a Tx are
// staged and only become visible on commit; per-auction mutexes taken by
// LockAuctions give the same serialization MySQL gets from SELECT ... FOR UPDATE.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string]*domain.Bid
	byAuc    map[string][]string // auction id -> bid ids in insertion order

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string]*domain.Bid),
		byAuc:    make(map[string][]string),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *Store) auctionLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// lockOne serializes a single-row write with any tx holding the auction.
func (s *Store) lockOne(id string) func() {
	l := s.auctionLock(id)
	l.Lock()
	return l.Unlock
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) ListAuctions(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Auction
	for _, a := range s.auctions {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && a.CreatedBy != filter.CreatedBy {
			continue
		}
		if len(filter.UserTypes) > 0 && !containsUserType(filter.UserTypes, a.UserType) {
			continue
		}
		matched = append(matched, a.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (s *Store) IncrementViews(ctx context.Context, auctionID string) error {
	unlock := s.lockOne(auctionID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Views++
	return nil
}

func (s *Store) ClaimWinnerNotification(ctx context.Context, auctionID string, at time.Time) (bool, error) {
	unlock := s.lockOne(auctionID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.Winner == nil || a.Winner.Notified {
		return false, nil
	}
	a.Winner.Notified = true
	a.Winner.NotifiedAt = &at
	return true, nil
}

func (s *Store) ReleaseWinnerNotification(ctx context.Context, auctionID string) error {
	unlock := s.lockOne(auctionID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Winner != nil {
		a.Winner.Notified = false
		a.Winner.NotifiedAt = nil
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx := &memTx{
		store:    s,
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string]*domain.Bid),
		deleted:  make(map[string]bool),
		held:     make(map[string]*sync.Mutex),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Bid reads

func (s *Store) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[bidID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *Store) ListBids(ctx context.Context, auctionID string, offset, limit int) ([]*domain.Bid, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAuc[auctionID]
	bids := make([]*domain.Bid, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		bids = append(bids, s.bids[ids[i]].Clone())
	}
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
	return page(bids, offset, limit), len(bids), nil
}

func (s *Store) LatestBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	bids, _, err := s.ListBids(ctx, auctionID, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, domain.ErrNotFound
	}
	return bids[0], nil
}

func (s *Store) ListBidderIDs(ctx context.Context, auctionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, id := range s.byAuc[auctionID] {
		b := s.bids[id]
		if b.IsAutoBid || seen[b.UserID] {
			continue
		}
		seen[b.UserID] = true
		out = append(out, b.UserID)
	}
	return out, nil
}

// Scheduler scans

func (s *Store) DueForActivation(ctx context.Context, now time.Time) ([]string, error) {
	return s.scanIDs(func(a *domain.Auction) bool {
		return a.Status == domain.AuctionDraft && !a.StartTime.After(now)
	}), nil
}

func (s *Store) DueForExpiry(ctx context.Context, now time.Time) ([]string, error) {
	return s.scanIDs(func(a *domain.Auction) bool {
		return a.Status == domain.AuctionActive && !a.EndTime.After(now)
	}), nil
}

func (s *Store) EndingSoon(ctx context.Context, now, until time.Time) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.AuctionActive && a.EndingSoonNotifiedAt == nil &&
			a.EndTime.After(now) && !a.EndTime.After(until) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkEndingSoonNotified(ctx context.Context, auctionID string, at time.Time) (bool, error) {
	unlock := s.lockOne(auctionID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.EndingSoonNotifiedAt != nil {
		return false, nil
	}
	a.EndingSoonNotifiedAt = &at
	return true, nil
}

func (s *Store) LinkedOpen(ctx context.Context) ([]string, error) {
	return s.scanIDs(func(a *domain.Auction) bool {
		return a.IsLinked() && !a.Status.IsTerminal()
	}), nil
}

func (s *Store) scanIDs(match func(a *domain.Auction) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, a := range s.auctions {
		if match(a) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type memTx struct {
	store    *Store
	auctions map[string]*domain.Auction
	bids     map[string]*domain.Bid
	newBids  []string
	deleted  map[string]bool
	held     map[string]*sync.Mutex
}

func (t *memTx) LockAuctions(ctx context.Context, auctionIDs ...string) (map[string]*domain.Auction, error) {
	ids := append([]string(nil), auctionIDs...)
	sort.Strings(ids)

	out := make(map[string]*domain.Auction, len(ids))
	for _, id := range ids {
		if _, ok := t.held[id]; !ok {
			l := t.store.auctionLock(id)
			l.Lock()
			t.held[id] = l
		}
		if a, ok := t.auction(id); ok {
			out[id] = a.Clone()
		}
	}
	return out, nil
}

func (t *memTx) auction(id string) (*domain.Auction, bool) {
	if t.deleted[id] {
		return nil, false
	}
	if a, ok := t.auctions[id]; ok {
		return a, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.auctions[id]
	return a, ok
}

func (t *memTx) InsertAuction(ctx context.Context, a *domain.Auction) error {
	if _, exists := t.auction(a.ID); exists {
		return fmt.Errorf("auction %s already exists", a.ID)
	}
	t.auctions[a.ID] = a.Clone()
	return nil
}

func (t *memTx) UpdateAuction(ctx context.Context, a *domain.Auction) error {
	if _, ok := t.held[a.ID]; !ok {
		if _, staged := t.auctions[a.ID]; !staged {
			return fmt.Errorf("auction %s updated without lock", a.ID)
		}
	}
	if _, ok := t.auction(a.ID); !ok {
		return domain.ErrNotFound
	}
	t.auctions[a.ID] = a.Clone()
	return nil
}

// DeleteAuction drops the auction and all of its bids on commit.
func (t *memTx) DeleteAuction(ctx context.Context, auctionID string) error {
	if _, ok := t.held[auctionID]; !ok {
		return fmt.Errorf("auction %s deleted without lock", auctionID)
	}
	if _, ok := t.auction(auctionID); !ok {
		return domain.ErrNotFound
	}
	delete(t.auctions, auctionID)
	t.deleted[auctionID] = true
	return nil
}

func (t *memTx) InsertBid(ctx context.Context, b *domain.Bid) error {
	if _, ok := t.bid(b.ID); ok {
		return fmt.Errorf("bid %s already exists", b.ID)
	}
	t.bids[b.ID] = b.Clone()
	t.newBids = append(t.newBids, b.ID)
	return nil
}

func (t *memTx) UpdateBid(ctx context.Context, b *domain.Bid) error {
	if _, ok := t.bid(b.ID); !ok {
		return domain.ErrNotFound
	}
	t.bids[b.ID] = b.Clone()
	return nil
}

func (t *memTx) bid(id string) (*domain.Bid, bool) {
	if b, ok := t.bids[id]; ok {
		return b, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	b, ok := t.store.bids[id]
	return b, ok
}

// auctionBids returns the auction's bids as seen from inside the tx.
func (t *memTx) auctionBids(auctionID string) []*domain.Bid {
	t.store.mu.RLock()
	ids := append([]string(nil), t.store.byAuc[auctionID]...)
	t.store.mu.RUnlock()

	for _, id := range t.newBids {
		if t.bids[id].AuctionID == auctionID {
			ids = append(ids, id)
		}
	}
	out := make([]*domain.Bid, 0, len(ids))
	for _, id := range ids {
		b, _ := t.bid(id)
		out = append(out, b)
	}
	return out
}

func (t *memTx) TransitionBids(ctx context.Context, auctionID string, from, to domain.BidStatus) ([]*domain.Bid, error) {
	now := t.store.now()
	var changed []*domain.Bid
	for _, b := range t.auctionBids(auctionID) {
		if b.Status != from {
			continue
		}
		c := b.Clone()
		c.Status = to
		c.UpdatedAt = now
		t.bids[c.ID] = c
		changed = append(changed, c.Clone())
	}
	return changed, nil
}

func (t *memTx) HighestValidBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	var best *domain.Bid
	for _, b := range t.auctionBids(auctionID) {
		if b.Status != domain.BidValid {
			continue
		}
		if best == nil || ranksAbove(b, best) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Clone(), nil
}

func ranksAbove(a, b *domain.Bid) bool {
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range t.auctions {
		s.auctions[id] = a
	}
	for _, id := range t.newBids {
		s.byAuc[t.bids[id].AuctionID] = append(s.byAuc[t.bids[id].AuctionID], id)
	}
	for id, b := range t.bids {
		s.bids[id] = b
	}
	for id := range t.deleted {
		for _, bidID := range s.byAuc[id] {
			delete(s.bids, bidID)
		}
		delete(s.byAuc, id)
		delete(s.auctions, id)
	}
}

func (t *memTx) release() {
	for id, l := range t.held {
		l.Unlock()
		delete(t.held, id)
	}
}

func containsUserType(list []domain.UserType, ut domain.UserType) bool {
	for _, u := range list {
		if u == ut {
			return true
		}
	}
	return false
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
