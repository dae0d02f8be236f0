package services

import (
	"auction-engine/internal/domain"
	"sync"
)

// DeliveryHistory keeps the last N notifications seen by a consumer.
type DeliveryHistory struct {
	mu    sync.RWMutex
	items []domain.Notification
	next  int
	full  bool
}

func NewDeliveryHistory(size int) *DeliveryHistory {
	if size <= 0 {
		size = 1
	}
	return &DeliveryHistory{items: make([]domain.Notification, size)}
}

func (h *DeliveryHistory) Record(n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = n
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to limit notifications, newest first. An empty
// recipientID matches everyone; limit <= 0 means all retained.
func (h *DeliveryHistory) Recent(recipientID string, limit int) []domain.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.next
	if h.full {
		count = len(h.items)
	}
	out := make([]domain.Notification, 0, count)
	for i := 1; i <= count; i++ {
		n := h.items[(h.next-i+len(h.items))%len(h.items)]
		if recipientID != "" && n.RecipientID != recipientID {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
