package services

import (
	"auction-engine/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
)

type FeeEntry struct {
	UserType    string                 `json:"user_type"`
	Category    domain.PricingCategory `json:"category"`
	BidFee      decimal.Decimal        `json:"bid_fee"`
	DeliveryFee decimal.Decimal        `json:"delivery_fee"`
}

// DefaultFeeEntries seeds an empty schedule.
func DefaultFeeEntries() []FeeEntry {
	return []FeeEntry{
		{UserType: domain.FeeUserTypeAll, Category: domain.PricingStandard, BidFee: decimal.NewFromInt(25), DeliveryFee: decimal.NewFromInt(150)},
		{UserType: domain.FeeUserTypeAll, Category: domain.PricingPremium, BidFee: decimal.NewFromInt(50), DeliveryFee: decimal.NewFromInt(250)},
		{UserType: string(domain.RoleDealer), Category: domain.PricingStandard, BidFee: decimal.NewFromInt(15), DeliveryFee: decimal.NewFromInt(100)},
		{UserType: string(domain.RoleDealer), Category: domain.PricingDealer, BidFee: decimal.NewFromInt(10), DeliveryFee: decimal.NewFromInt(75)},
		{UserType: string(domain.RoleIndividual), Category: domain.PricingStandard, BidFee: decimal.NewFromInt(25), DeliveryFee: decimal.NewFromInt(150)},
	}
}

type feeResult struct {
	fees  domain.Fees
	found bool
}

// FeeSchedule resolves fees from a JSON schedule stored in Redis. Lookups
// go through an LRU; LoadSchedule resets it.
type FeeSchedule struct {
	client *redis.Client
	key    string
	cache  *lru.Cache

	mu      sync.RWMutex
	entries []FeeEntry
}

func NewFeeSchedule(client *redis.Client, key string, cacheSize int) (*FeeSchedule, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("fee cache: %w", err)
	}
	return &FeeSchedule{
		client: client,
		key:    key,
		cache:  cache,
	}, nil
}

// NewStaticFeeSchedule serves a fixed schedule without Redis.
func NewStaticFeeSchedule(entries []FeeEntry) *FeeSchedule {
	cache, _ := lru.New(64)
	return &FeeSchedule{
		cache:   cache,
		entries: entries,
	}
}

func (f *FeeSchedule) LoadSchedule(ctx context.Context) error {
	if f.client == nil {
		return nil
	}

	data, err := f.client.Get(ctx, f.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			f.setEntries(DefaultFeeEntries())
			return f.saveSchedule(ctx)
		}
		return err
	}

	var entries []FeeEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return fmt.Errorf("decode fee schedule: %w", err)
	}
	f.setEntries(entries)
	return nil
}

func (f *FeeSchedule) saveSchedule(ctx context.Context) error {
	f.mu.RLock()
	data, err := json.Marshal(f.entries)
	f.mu.RUnlock()
	if err != nil {
		return err
	}

	return f.client.Set(ctx, f.key, string(data), 0).Err()
}

func (f *FeeSchedule) setEntries(entries []FeeEntry) {
	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
	f.cache.Purge()
}

// ResolveFees tries (audience, category), then (all, category), then
// (all, standard). Admins are priced as "all".
func (f *FeeSchedule) ResolveFees(ctx context.Context, audience string, category domain.PricingCategory) (domain.Fees, bool, error) {
	if audience == string(domain.RoleAdmin) || audience == "" {
		audience = domain.FeeUserTypeAll
	}
	if category == "" {
		category = domain.PricingStandard
	}

	key := audience + "|" + string(category)
	if v, ok := f.cache.Get(key); ok {
		r := v.(feeResult)
		return r.fees, r.found, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	candidates := [][2]string{
		{audience, string(category)},
		{domain.FeeUserTypeAll, string(category)},
		{domain.FeeUserTypeAll, string(domain.PricingStandard)},
	}
	var r feeResult
	for _, c := range candidates {
		if e, ok := f.find(c[0], domain.PricingCategory(c[1])); ok {
			r = feeResult{fees: domain.Fees{BidFee: e.BidFee, DeliveryFee: e.DeliveryFee}, found: true}
			break
		}
	}
	f.cache.Add(key, r)
	return r.fees, r.found, nil
}

func (f *FeeSchedule) find(userType string, category domain.PricingCategory) (FeeEntry, bool) {
	for _, e := range f.entries {
		if e.UserType == userType && e.Category == category {
			return e, true
		}
	}
	return FeeEntry{}, false
}
