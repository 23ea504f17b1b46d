package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedbot-backend/internal/negotiation/domain"
)

var hours = WorkingHours{StartHour: 9, EndHour: 17}

// Monday March 2nd 2026
func day(d, h, m int) time.Time {
	return time.Date(2026, 3, d, h, m, 0, 0, time.UTC)
}

func TestFreeSlots_EmptyCalendarFillsWorkingDay(t *testing.T) {
	window := domain.Slot{Start: day(2, 0, 0), End: day(3, 0, 0)}

	slots := FreeSlots(window, nil, hours, 30*time.Minute, time.UTC)

	// 9:00-17:00 in 30-minute chunks.
	require.Len(t, slots, 16)
	assert.True(t, slots[0].Start.Equal(day(2, 9, 0)))
	assert.True(t, slots[15].End.Equal(day(2, 17, 0)))
}

func TestFreeSlots_SkipsWeekends(t *testing.T) {
	// Saturday March 7th through Sunday March 8th.
	window := domain.Slot{Start: day(7, 0, 0), End: day(9, 0, 0)}

	slots := FreeSlots(window, nil, hours, 30*time.Minute, time.UTC)

	assert.Empty(t, slots)
}

func TestFreeSlots_ExcludesBusyIntervals(t *testing.T) {
	window := domain.Slot{Start: day(2, 0, 0), End: day(3, 0, 0)}
	busy := []domain.Slot{{Start: day(2, 10, 0), End: day(2, 12, 0)}}

	slots := FreeSlots(window, busy, hours, time.Hour, time.UTC)

	for _, s := range slots {
		assert.False(t, s.Overlaps(busy[0]), "slot %s overlaps busy interval", s.Start)
	}
	// 9-10 free, 10-12 busy, 12-17 free: 1 + 5 one-hour slots.
	assert.Len(t, slots, 6)
}

func TestFreeSlots_MergesOverlappingBusy(t *testing.T) {
	window := domain.Slot{Start: day(2, 0, 0), End: day(3, 0, 0)}
	busy := []domain.Slot{
		{Start: day(2, 9, 0), End: day(2, 11, 0)},
		{Start: day(2, 10, 0), End: day(2, 13, 0)},
	}

	slots := FreeSlots(window, busy, hours, time.Hour, time.UTC)

	require.NotEmpty(t, slots)
	assert.True(t, slots[0].Start.Equal(day(2, 13, 0)))
}

func TestFreeSlots_SortedAndNonOverlapping(t *testing.T) {
	window := domain.Slot{Start: day(2, 0, 0), End: day(7, 0, 0)}
	busy := []domain.Slot{
		{Start: day(3, 14, 0), End: day(3, 15, 0)},
		{Start: day(2, 9, 30), End: day(2, 10, 30)},
	}

	slots := FreeSlots(window, busy, hours, 30*time.Minute, time.UTC)

	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
		assert.False(t, slots[i-1].Overlaps(slots[i]))
	}
}

func TestFreeSlots_EverySlotHasRequestedDuration(t *testing.T) {
	window := domain.Slot{Start: day(2, 0, 0), End: day(4, 0, 0)}
	busy := []domain.Slot{{Start: day(2, 9, 0), End: day(2, 9, 45)}}

	slots := FreeSlots(window, busy, hours, time.Hour, time.UTC)

	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.Equal(t, time.Hour, s.Duration())
	}
	// The 45-minute remainder before 9:45 never yields a one-hour slot.
	assert.True(t, slots[0].Start.Equal(day(2, 9, 45)))
}

func TestFreeSlots_ClipsToWindow(t *testing.T) {
	window := domain.Slot{Start: day(2, 10, 0), End: day(2, 15, 0)}

	slots := FreeSlots(window, nil, hours, time.Hour, time.UTC)

	require.Len(t, slots, 5)
	assert.True(t, slots[0].Start.Equal(day(2, 10, 0)))
	assert.True(t, slots[4].End.Equal(day(2, 15, 0)))
}

func TestFreeSlots_DegenerateInputs(t *testing.T) {
	window := domain.Slot{Start: day(2, 0, 0), End: day(3, 0, 0)}

	assert.Nil(t, FreeSlots(window, nil, hours, 0, time.UTC))
	assert.Nil(t, FreeSlots(window, nil, WorkingHours{StartHour: 17, EndHour: 9}, time.Hour, time.UTC))
	assert.Nil(t, FreeSlots(domain.Slot{Start: day(3, 0, 0), End: day(2, 0, 0)}, nil, hours, time.Hour, time.UTC))
}

func TestWorkingHours_Valid(t *testing.T) {
	assert.True(t, WorkingHours{StartHour: 9, EndHour: 17}.Valid())
	assert.False(t, WorkingHours{StartHour: 17, EndHour: 9}.Valid())
	assert.False(t, WorkingHours{StartHour: -1, EndHour: 17}.Valid())
	assert.False(t, WorkingHours{StartHour: 9, EndHour: 25}.Valid())
}
