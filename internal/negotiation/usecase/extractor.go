package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"schedbot-backend/internal/availability"
	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/pkg/ai"
)

// DetailExtractor merges one message's extracted content into a negotiation's
// meeting details and search window. Merge is null-safe last-write-wins per
// field: absent values never erase what an earlier message established.
type DetailExtractor struct {
	ai              ai.Scheduler
	loc             *time.Location
	hours           availability.WorkingHours
	botAddress      string
	defaultDuration int
}

// NewDetailExtractor creates a detail extractor
func NewDetailExtractor(model ai.Scheduler, loc *time.Location, hours availability.WorkingHours, botAddress string, defaultDurationMinutes int) *DetailExtractor {
	return &DetailExtractor{
		ai:              model,
		loc:             loc,
		hours:           hours,
		botAddress:      strings.ToLower(botAddress),
		defaultDuration: defaultDurationMinutes,
	}
}

// Apply extracts details from the message and merges them into n
func (e *DetailExtractor) Apply(ctx context.Context, n *domain.Negotiation, msg *domain.InboundMessage) error {
	details, err := e.ai.ExtractDetails(ctx, ai.ExtractionInput{
		Body:     msg.Body,
		Sender:   msg.Sender,
		To:       msg.To,
		Cc:       msg.Cc,
		Now:      msg.Timestamp,
		Timezone: e.loc.String(),
	})
	if err != nil {
		return err
	}
	return e.merge(n, details, msg)
}

func (e *DetailExtractor) merge(n *domain.Negotiation, details *ai.ExtractedDetails, msg *domain.InboundMessage) error {
	// Duration: explicit mention overwrites, absence keeps the previous
	// value, and the configured minimum is the floor either way.
	if details.DurationMinutes > 0 {
		n.DurationMinutes = details.DurationMinutes
	}
	if n.DurationMinutes < e.defaultDuration {
		n.DurationMinutes = e.defaultDuration
	}

	// Window per the merge rules, keyed off the message timestamp so the
	// same message always produces the same window.
	switch details.Timeframe {
	case ai.TimeframeExplicit:
		start, end := rangeHull(details.Ranges)
		n.WindowStart = start
		n.WindowEnd = end
	case ai.TimeframeThisWeek:
		n.WindowStart, n.WindowEnd = e.restOfWorkingWeek(msg.Timestamp)
	case ai.TimeframeNone:
		if n.WindowStart.IsZero() || n.WindowEnd.IsZero() {
			n.WindowStart, n.WindowEnd = e.nextBusinessWeek(msg.Timestamp)
		}
	}
	if !n.WindowStart.Before(n.WindowEnd) {
		return fmt.Errorf("extracted window %s..%s is empty", n.WindowStart, n.WindowEnd)
	}

	// Attendees: union of everything stated with everyone on the email,
	// minus the bot's own mailbox. Sorted for deterministic output.
	set := make(map[string]struct{})
	add := func(addrs ...string) {
		for _, a := range addrs {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" && a != e.botAddress {
				set[a] = struct{}{}
			}
		}
	}
	add(n.Attendees...)
	add(details.Attendees...)
	add(msg.Sender)
	add(msg.To...)
	add(msg.Cc...)
	attendees := make([]string, 0, len(set))
	for a := range set {
		attendees = append(attendees, a)
	}
	sort.Strings(attendees)
	n.Attendees = attendees

	if details.Title != "" {
		n.Title = details.Title
	}
	if details.Description != "" {
		n.Description = details.Description
	}
	if details.Location != "" {
		n.Location = details.Location
	}
	return nil
}

// rangeHull returns the earliest start and latest end across the ranges
func rangeHull(ranges []ai.TimeRange) (time.Time, time.Time) {
	start, end := ranges[0].Start, ranges[0].End
	for _, r := range ranges[1:] {
		if r.Start.Before(start) {
			start = r.Start
		}
		if r.End.After(end) {
			end = r.End
		}
	}
	return start, end
}

// restOfWorkingWeek spans from the message time to Friday's closing hour of
// the same week. A message landing after that (Friday evening, weekend)
// rolls over to the next business week.
func (e *DetailExtractor) restOfWorkingWeek(ts time.Time) (time.Time, time.Time) {
	local := ts.In(e.loc)
	daysToFriday := int(time.Friday - local.Weekday())
	if daysToFriday < 0 { // Saturday
		daysToFriday += 7
	}
	friday := local.AddDate(0, 0, daysToFriday)
	end := time.Date(friday.Year(), friday.Month(), friday.Day(), e.hours.EndHour, 0, 0, 0, e.loc)
	if !local.Before(end) || local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return e.nextBusinessWeek(ts)
	}
	return local, end
}

// nextBusinessWeek spans the following Monday's opening hour through that
// week's Friday closing hour.
func (e *DetailExtractor) nextBusinessWeek(ts time.Time) (time.Time, time.Time) {
	local := ts.In(e.loc)
	daysToMonday := (8 - int(local.Weekday())) % 7
	if daysToMonday == 0 {
		daysToMonday = 7
	}
	monday := local.AddDate(0, 0, daysToMonday)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), e.hours.StartHour, 0, 0, 0, e.loc)
	end := start.AddDate(0, 0, 4)
	end = time.Date(end.Year(), end.Month(), end.Day(), e.hours.EndHour, 0, 0, 0, e.loc)
	return start, end
}
