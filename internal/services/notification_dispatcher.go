package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"context"
	"sync"
	"time"
)

// NotificationSink accepts notifications without blocking the caller.
type NotificationSink interface {
	Dispatch(notifications ...domain.Notification)
}

// NotificationDispatcher hands notifications to a Notifier from a pool of
// workers. A full queue drops the notification and logs it; delivery never
// feeds back into the operation that produced it.
type NotificationDispatcher struct {
	notifier domain.Notifier
	queue    chan domain.Notification
	workers  int
	timeout  time.Duration
	log      logger.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

func NewNotificationDispatcher(notifier domain.Notifier, queueSize, workers int, timeout time.Duration, log logger.Logger) *NotificationDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &NotificationDispatcher{
		notifier: notifier,
		queue:    make(chan domain.Notification, queueSize),
		workers:  workers,
		timeout:  timeout,
		log:      log,
		done:     make(chan struct{}),
	}
}

func (d *NotificationDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Stop drains what is already queued and waits for the workers.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *NotificationDispatcher) Dispatch(notifications ...domain.Notification) {
	for _, n := range notifications {
		select {
		case <-d.done:
			d.log.Warn("Dispatcher stopped, dropping notification", "event", n.Event, "auction_id", n.AuctionID)
			return
		default:
		}
		select {
		case d.queue <- n:
		default:
			d.log.Warn("Notification queue full, dropping notification",
				"event", n.Event, "auction_id", n.AuctionID, "recipient_id", n.RecipientID)
		}
	}
}

func (d *NotificationDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *NotificationDispatcher) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, n); err != nil {
		d.log.Error("Failed to deliver notification",
			"event", n.Event, "auction_id", n.AuctionID, "recipient_id", n.RecipientID, "error", err)
		return
	}
	d.log.Debug("Notification delivered", "event", n.Event, "auction_id", n.AuctionID, "recipient_id", n.RecipientID)
}

// LogNotifier writes notifications to the log. It stands in for the Redis
// publisher when the service runs without Redis.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.log.Info("Notification", "event", note.Event, "auction_id", note.AuctionID,
		"recipient_id", note.RecipientID, "amount", note.Amount, "reason", note.Reason)
	return nil
}
