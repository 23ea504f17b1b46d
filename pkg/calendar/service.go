// Package calendar reads availability from and books events into a Google
// Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"schedbot-backend/internal/negotiation/domain"
)

// ErrSlotTaken signals that the requested interval is no longer free at
// commit time. Callers drop the slot and recompute instead of crashing.
var ErrSlotTaken = errors.New("calendar: slot is no longer free")

// Service wraps the Google Calendar API for one calendar
type Service struct {
	svc        *gcal.Service
	calendarID string
}

// NewService authenticates with the service-account credentials file. An
// authentication failure here is fatal at startup.
func NewService(ctx context.Context, credentialsFile, calendarID string) (*Service, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("calendar credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("calendar auth: %w", err)
	}
	svc, err := gcal.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}
	return &Service{svc: svc, calendarID: calendarID}, nil
}

// BusyIntervals returns the calendar's busy intervals inside the window
func (s *Service) BusyIntervals(ctx context.Context, window domain.Slot) ([]domain.Slot, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: s.calendarID}},
	}
	resp, err := s.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[s.calendarID]
	if !ok {
		return nil, fmt.Errorf("freebusy response missing calendar %q", s.calendarID)
	}
	var busy []domain.Slot
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("freebusy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("freebusy end %q: %w", period.End, err)
		}
		busy = append(busy, domain.Slot{Start: start, End: end})
	}
	return busy, nil
}

// IsFree re-checks a single interval just before booking
func (s *Service) IsFree(ctx context.Context, slot domain.Slot) (bool, error) {
	busy, err := s.BusyIntervals(ctx, slot)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if b.Overlaps(slot) {
			return false, nil
		}
	}
	return true, nil
}

// Book inserts the event after a final freshness check. The provider gives
// no duplicate-booking idempotency, so this is check-then-book: the window
// between the check and the insert is a known, accepted race.
func (s *Service) Book(ctx context.Context, slot domain.Slot, n *domain.Negotiation) (string, error) {
	free, err := s.IsFree(ctx, slot)
	if err != nil {
		return "", err
	}
	if !free {
		return "", ErrSlotTaken
	}

	attendees := make([]*gcal.EventAttendee, 0, len(n.Attendees))
	for _, a := range n.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: a})
	}

	title := n.Title
	if title == "" {
		title = n.Subject
	}
	event := &gcal.Event{
		Summary:     title,
		Description: n.Description,
		Location:    n.Location,
		Start:       &gcal.EventDateTime{DateTime: slot.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: slot.End.Format(time.RFC3339)},
		Attendees:   attendees,
	}

	created, err := s.svc.Events.Insert(s.calendarID, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("event insert: %w", err)
	}
	log.Printf("[Calendar] booked %q from %s to %s", title, slot.Start, slot.End)
	return created.Id, nil
}
