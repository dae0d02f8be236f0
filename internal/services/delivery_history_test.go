package services

import (
	"auction-engine/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryHistory(t *testing.T) {
	h := NewDeliveryHistory(3)
	assert.Empty(t, h.Recent("", 0))

	for _, who := range []string{"a", "b", "a", "c"} {
		h.Record(domain.Notification{Event: domain.EventOutbid, RecipientID: who, AuctionID: "x"})
	}

	var got []string
	for _, n := range h.Recent("", 0) {
		got = append(got, n.RecipientID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got, "oldest entry evicted, newest first")

	assert.Len(t, h.Recent("a", 0), 1)
	assert.Len(t, h.Recent("", 2), 2)
	assert.Empty(t, h.Recent("nobody", 0))
}
