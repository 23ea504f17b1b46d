package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func slot(startHour, endHour int) Slot {
	return Slot{
		Start: time.Date(2026, 3, 2, startHour, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, endHour, 0, 0, 0, time.UTC),
	}
}

func TestSlot_Overlaps(t *testing.T) {
	assert.True(t, slot(9, 11).Overlaps(slot(10, 12)))
	assert.True(t, slot(9, 17).Overlaps(slot(10, 11)))
	// Touching intervals do not overlap.
	assert.False(t, slot(9, 10).Overlaps(slot(10, 11)))
	assert.False(t, slot(9, 10).Overlaps(slot(14, 15)))
}

func TestSlot_Covers(t *testing.T) {
	assert.True(t, slot(9, 17).Covers(slot(10, 11)))
	assert.True(t, slot(9, 11).Covers(slot(9, 11)))
	assert.False(t, slot(9, 11).Covers(slot(10, 12)))
}

func TestNegotiation_Terminal(t *testing.T) {
	n := &Negotiation{Status: StatusCollecting}
	assert.False(t, n.Terminal())

	for _, status := range []NegotiationStatus{StatusScheduled, StatusCancelled, StatusFailed} {
		n.Status = status
		assert.True(t, n.Terminal(), "status %s", status)
	}
}

func TestNegotiation_ChosenSlot(t *testing.T) {
	n := &Negotiation{}
	assert.Nil(t, n.ChosenSlot())

	n.SetChosenSlot(slot(10, 11))
	got := n.ChosenSlot()
	assert.NotNil(t, got)
	assert.True(t, got.Equal(slot(10, 11)))
}

func TestGuestResponse_Compatible(t *testing.T) {
	unconstrained := &GuestResponse{Status: ResponseAccepted}
	assert.True(t, unconstrained.Compatible(slot(9, 10)))

	constrained := &GuestResponse{
		Status:          ResponseAccepted,
		PreferredRanges: []Slot{slot(10, 14)},
	}
	assert.True(t, constrained.Compatible(slot(10, 11)))
	assert.True(t, constrained.Compatible(slot(13, 14)))
	assert.False(t, constrained.Compatible(slot(9, 10)))
	assert.False(t, constrained.Compatible(slot(13, 15)))
}

func TestInboundMessage_ReplyChain(t *testing.T) {
	msg := &InboundMessage{
		InReplyTo:  "c@example.com",
		References: []string{"a@example.com", "b@example.com", "c@example.com"},
	}

	// In-Reply-To first, then references newest to oldest, deduplicated.
	assert.Equal(t, []string{"c@example.com", "b@example.com", "a@example.com"}, msg.ReplyChain())

	assert.Empty(t, (&InboundMessage{}).ReplyChain())
}
