package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

// SchedulerSpecs are the cron specs for each duty.
type SchedulerSpecs struct {
	Activation       string
	Expiry           string
	EndingSoon       string
	Reconcile        string
	EndingSoonWindow time.Duration
}

// AuctionScheduler drives the time-based transitions. Each duty is safe to
// run from several instances at once because every transition re-checks
// its precondition under the auction lock; leader election only keeps the
// duplicate work down.
type AuctionScheduler struct {
	cron        *cron.Cron
	repo        domain.SchedulerRepository
	bidRepo     domain.BidRepository
	auctionMgr  *AuctionManager
	coordinator *ParallelCoordinator
	sink        NotificationSink
	leader      domain.LeaderElection
	instanceID  string
	specs       SchedulerSpecs
	log         logger.Logger
	now         func() time.Time

	mu      sync.Mutex
	ctx     context.Context // duty context, cancelled by Stop
	cancel  context.CancelFunc
	running bool
}

func NewAuctionScheduler(
	repo domain.SchedulerRepository,
	bidRepo domain.BidRepository,
	auctionMgr *AuctionManager,
	coordinator *ParallelCoordinator,
	sink NotificationSink,
	leader domain.LeaderElection,
	instanceID string,
	specs SchedulerSpecs,
	log logger.Logger,
) *AuctionScheduler {
	cl := cronLogger{log: log}
	return &AuctionScheduler{
		cron:        cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		repo:        repo,
		bidRepo:     bidRepo,
		auctionMgr:  auctionMgr,
		coordinator: coordinator,
		sink:        sink,
		leader:      leader,
		instanceID:  instanceID,
		specs:       specs,
		log:         log,
		now:         time.Now,
	}
}

func (s *AuctionScheduler) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuctionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.log.Info("Starting auction scheduler", "instance_id", s.instanceID)

	ctx, cancel := context.WithCancel(ctx)
	duties := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"activate_due_auctions", s.specs.Activation, s.ActivateDueAuctions},
		{"end_expired_auctions", s.specs.Expiry, s.EndExpiredAuctions},
		{"notify_ending_soon", s.specs.EndingSoon, s.NotifyEndingSoon},
		{"reconcile_linked_auctions", s.specs.Reconcile, s.ReconcileLinkedAuctions},
	}
	for _, d := range duties {
		d := d
		if d.spec == "" {
			continue
		}
		_, err := s.cron.AddFunc(d.spec, func() { s.runDuty(ctx, d.name, d.run) })
		if err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", d.name, err)
		}
	}

	s.ctx, s.cancel = ctx, cancel
	s.running = true
	s.cron.Start()
	return nil
}

// Stop cancels running duties, waits for them to return and gives up
// leadership.
func (s *AuctionScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.log.Info("Stopping auction scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false

	if s.leader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.leader.ReleaseLeadership(ctx, s.instanceID)
	}
	return nil
}

func (s *AuctionScheduler) runDuty(ctx context.Context, name string, run func(context.Context) (int, error)) {
	if ctx.Err() != nil {
		return
	}
	leading, err := s.isLeading(ctx)
	if err != nil {
		s.log.Error("Leader check failed", "duty", name, "error", err)
		return
	}
	if !leading {
		s.log.Debug("Not the leader, skipping duty", "duty", name)
		return
	}

	n, err := run(ctx)
	for _, e := range multierr.Errors(err) {
		s.log.Error("Scheduler duty failure", "duty", name, "error", e)
	}
	if n > 0 {
		s.log.Info("Scheduler duty done", "duty", name, "affected", n)
	}
}

func (s *AuctionScheduler) isLeading(ctx context.Context) (bool, error) {
	if s.leader == nil {
		return true, nil
	}
	ok, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil || ok {
		return ok, err
	}
	return s.leader.BecomeLeader(ctx, s.instanceID)
}

// ActivateDueAuctions opens drafts whose start time has passed.
func (s *AuctionScheduler) ActivateDueAuctions(ctx context.Context) (int, error) {
	ids, err := s.repo.DueForActivation(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("scan due auctions: %w", err)
	}
	return s.each(ctx, ids, s.auctionMgr.StartDueAuction)
}

// EndExpiredAuctions ends active auctions past their end time and resolves them.
func (s *AuctionScheduler) EndExpiredAuctions(ctx context.Context) (int, error) {
	ids, err := s.repo.DueForExpiry(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("scan expired auctions: %w", err)
	}
	return s.each(ctx, ids, s.auctionMgr.ExpireAuction)
}

// NotifyEndingSoon warns bidders once per auction when its end is within
// the configured window.
func (s *AuctionScheduler) NotifyEndingSoon(ctx context.Context) (int, error) {
	now := s.now()
	auctions, err := s.repo.EndingSoon(ctx, now, now.Add(s.specs.EndingSoonWindow))
	if err != nil {
		return 0, fmt.Errorf("scan ending soon: %w", err)
	}

	var errs error
	sent := 0
	for _, a := range auctions {
		claimed, err := s.repo.MarkEndingSoonNotified(ctx, a.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("auction %s: %w", a.ID, err))
			continue
		}
		if !claimed {
			continue
		}
		bidders, err := s.bidRepo.ListBidderIDs(ctx, a.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("auction %s bidders: %w", a.ID, err))
			continue
		}
		end := a.EndTime
		notes := make([]domain.Notification, 0, len(bidders))
		for _, id := range bidders {
			notes = append(notes, domain.Notification{
				Event:       domain.EventAuctionEndingSoon,
				RecipientID: id,
				AuctionID:   a.ID,
				Amount:      a.CurrentPrice.String(),
				EndTime:     &end,
				OccurredAt:  now,
			})
		}
		s.sink.Dispatch(notes...)
		sent++
	}
	return sent, errs
}

// ReconcileLinkedAuctions repairs parallel pairs that drifted apart.
func (s *AuctionScheduler) ReconcileLinkedAuctions(ctx context.Context) (int, error) {
	ids, err := s.repo.LinkedOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan linked auctions: %w", err)
	}
	return s.each(ctx, ids, s.coordinator.Reconcile)
}

// each runs fn for every id, collecting failures instead of stopping.
func (s *AuctionScheduler) each(ctx context.Context, ids []string, fn func(context.Context, string) (bool, error)) (int, error) {
	var errs error
	n := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return n, multierr.Append(errs, ctx.Err())
		}
		changed, err := fn(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("auction %s: %w", id, err))
			continue
		}
		if changed {
			n++
		}
	}
	return n, errs
}

// cronLogger routes robfig/cron's logging to ours.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
