package services

import (
	"auction-engine/internal/domain"
	"auction-engine/internal/domain/mock"
	"auction-engine/pkg/logger"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestNotificationDispatcher_DeliversQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mock.NewMockNotifier(ctrl)

	delivered := make(chan domain.Notification, 2)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, n domain.Notification) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			delivered <- n
			return nil
		}).Times(2)

	d := NewNotificationDispatcher(notifier, 10, 2, time.Second, logger.NewNop())
	d.Start()
	d.Dispatch(
		domain.Notification{Event: domain.EventBidPlaced, AuctionID: "a1", RecipientID: "seller"},
		domain.Notification{Event: domain.EventOutbid, AuctionID: "a1", RecipientID: "alice"},
	)
	d.Stop()

	close(delivered)
	var events []domain.NotificationEvent
	for n := range delivered {
		events = append(events, n.Event)
	}
	assert.ElementsMatch(t, []domain.NotificationEvent{domain.EventBidPlaced, domain.EventOutbid}, events)
}

func TestNotificationDispatcher_FailureDoesNotStopWorkers(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mock.NewMockNotifier(ctrl)

	gomock.InOrder(
		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("broker down")),
		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil),
	)

	d := NewNotificationDispatcher(notifier, 10, 1, time.Second, logger.NewNop())
	d.Start()
	d.Dispatch(
		domain.Notification{Event: domain.EventBidPlaced, AuctionID: "a1"},
		domain.Notification{Event: domain.EventBidPlaced, AuctionID: "a2"},
	)
	d.Stop()
}

func TestNotificationDispatcher_FullQueueDrops(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mock.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	// not started: nothing drains the queue until Stop
	d := NewNotificationDispatcher(notifier, 2, 1, time.Second, logger.NewNop())
	for i := 0; i < 5; i++ {
		d.Dispatch(domain.Notification{Event: domain.EventOutbid, AuctionID: "a1"})
	}
	assert.Len(t, d.queue, 2)

	d.Start()
	d.Stop()
}

func TestNotificationDispatcher_DropsAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mock.NewMockNotifier(ctrl)

	d := NewNotificationDispatcher(notifier, 2, 1, time.Second, logger.NewNop())
	d.Start()
	d.Stop()
	d.Stop()

	d.Dispatch(domain.Notification{Event: domain.EventOutbid, AuctionID: "a1"})
	assert.Empty(t, d.queue)
}
