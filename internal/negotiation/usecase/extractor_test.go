package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/pkg/ai"
)

func newTestExtractor(model *fakeModel) *DetailExtractor {
	return NewDetailExtractor(model, time.UTC, testHours, "bot@example.com", 30)
}

func emptyNegotiation() *domain.Negotiation {
	return &domain.Negotiation{ID: "init@example.com", Status: domain.StatusCollecting}
}

func organizerMessage(ts time.Time) *domain.InboundMessage {
	return &domain.InboundMessage{
		MessageID: "init@example.com",
		Sender:    "alice@example.com",
		To:        []string{"bot@example.com"},
		Cc:        []string{"bob@example.com"},
		Timestamp: ts,
	}
}

func TestApply_ExplicitRangesBecomeWindowHull(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{
		Timeframe: ai.TimeframeExplicit,
		Ranges: []ai.TimeRange{
			{Start: day(4, 14, 0), End: day(4, 16, 0)},
			{Start: day(3, 9, 0), End: day(3, 12, 0)},
		},
	}}
	n := emptyNegotiation()

	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 8, 0)))

	require.NoError(t, err)
	assert.True(t, n.WindowStart.Equal(day(3, 9, 0)))
	assert.True(t, n.WindowEnd.Equal(day(4, 16, 0)))
}

func TestApply_ThisWeekRunsToFridayClose(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{Timeframe: ai.TimeframeThisWeek}}
	n := emptyNegotiation()

	// Wednesday morning.
	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(4, 8, 0)))

	require.NoError(t, err)
	assert.True(t, n.WindowStart.Equal(day(4, 8, 0)))
	assert.True(t, n.WindowEnd.Equal(day(6, 17, 0)))
}

func TestApply_ThisWeekOnSaturdayRollsToNextWeek(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{Timeframe: ai.TimeframeThisWeek}}
	n := emptyNegotiation()

	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(7, 10, 0)))

	require.NoError(t, err)
	assert.True(t, n.WindowStart.Equal(day(9, 9, 0)))
	assert.True(t, n.WindowEnd.Equal(day(13, 17, 0)))
}

func TestApply_NoTimeframeDefaultsToNextBusinessWeek(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{Timeframe: ai.TimeframeNone}}
	n := emptyNegotiation()

	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 8, 0)))

	require.NoError(t, err)
	// Next Monday 09:00 through next Friday 17:00.
	assert.True(t, n.WindowStart.Equal(day(9, 9, 0)))
	assert.True(t, n.WindowEnd.Equal(day(13, 17, 0)))
}

func TestApply_NoTimeframeKeepsEstablishedWindow(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{Timeframe: ai.TimeframeNone}}
	n := emptyNegotiation()
	n.WindowStart = day(3, 9, 0)
	n.WindowEnd = day(3, 17, 0)

	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 8, 0)))

	require.NoError(t, err)
	assert.True(t, n.WindowStart.Equal(day(3, 9, 0)))
	assert.True(t, n.WindowEnd.Equal(day(3, 17, 0)))
}

func TestApply_DurationDefaultsAndFloors(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{Timeframe: ai.TimeframeNone}}
	n := emptyNegotiation()

	require.NoError(t, newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 8, 0))))
	assert.Equal(t, 30, n.DurationMinutes)

	// A stated duration shorter than the minimum is raised to it.
	model.details.DurationMinutes = 10
	require.NoError(t, newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 9, 0))))
	assert.Equal(t, 30, n.DurationMinutes)

	model.details.DurationMinutes = 60
	require.NoError(t, newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 10, 0))))
	assert.Equal(t, 60, n.DurationMinutes)

	// A later message with no stated duration keeps the previous one.
	model.details.DurationMinutes = 0
	require.NoError(t, newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 11, 0))))
	assert.Equal(t, 60, n.DurationMinutes)
}

func TestApply_AttendeesUnionExcludesBot(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{
		Timeframe: ai.TimeframeNone,
		Attendees: []string{"Carol@Example.com"},
	}}
	n := emptyNegotiation()
	n.Attendees = []string{"dave@example.com"}

	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 8, 0)))

	require.NoError(t, err)
	assert.Equal(t, []string{
		"alice@example.com",
		"bob@example.com",
		"carol@example.com",
		"dave@example.com",
	}, n.Attendees)
	assert.False(t, n.HasAttendee("bot@example.com"))
}

func TestApply_AbsentFieldsKeepEarlierValues(t *testing.T) {
	model := &fakeModel{details: &ai.ExtractedDetails{
		Timeframe: ai.TimeframeNone,
		Title:     "Quarterly review",
		Location:  "Room 4",
	}}
	n := emptyNegotiation()

	extractor := newTestExtractor(model)
	require.NoError(t, extractor.Apply(context.Background(), n, organizerMessage(day(2, 8, 0))))
	assert.Equal(t, "Quarterly review", n.Title)
	assert.Equal(t, "Room 4", n.Location)

	model.details = &ai.ExtractedDetails{Timeframe: ai.TimeframeNone, Location: "Zoom"}
	require.NoError(t, extractor.Apply(context.Background(), n, organizerMessage(day(2, 9, 0))))
	assert.Equal(t, "Quarterly review", n.Title)
	assert.Equal(t, "Zoom", n.Location)
}

func TestApply_ModelErrorPropagates(t *testing.T) {
	model := &fakeModel{detailsErr: &ai.ModelOutputError{Op: "extract_details"}}
	n := emptyNegotiation()

	err := newTestExtractor(model).Apply(context.Background(), n, organizerMessage(day(2, 8, 0)))

	var modelErr *ai.ModelOutputError
	assert.ErrorAs(t, err, &modelErr)
}
