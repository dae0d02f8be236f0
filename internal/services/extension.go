package services

import (
	"auction-engine/internal/domain"
	"time"
)

// ExtensionPolicy pushes an auction's end time back when a bid lands inside
// its bid time buffer.
type ExtensionPolicy struct {
	// MaxExtensions caps extensions per auction; 0 means no cap.
	MaxExtensions int
}

func NewExtensionPolicy(maxExtensions int) ExtensionPolicy {
	return ExtensionPolicy{MaxExtensions: maxExtensions}
}

func (p ExtensionPolicy) ShouldExtend(now, endTime time.Time, buffer time.Duration) bool {
	return endTime.Sub(now) < buffer
}

func (p ExtensionPolicy) NewEndTime(endTime time.Time, buffer time.Duration) time.Time {
	return endTime.Add(buffer)
}

// Apply extends a in place using its own buffer and reports whether it did.
func (p ExtensionPolicy) Apply(a *domain.Auction, now time.Time) bool {
	if !p.ShouldExtend(now, a.EndTime, a.BidTimeBuffer) {
		return false
	}
	if p.MaxExtensions > 0 && a.Extensions >= p.MaxExtensions {
		return false
	}
	a.EndTime = p.NewEndTime(a.EndTime, a.BidTimeBuffer)
	a.Extensions++
	return true
}
