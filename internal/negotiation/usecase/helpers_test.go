package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schedbot-backend/internal/availability"
	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/internal/negotiation/repository"
	"schedbot-backend/pkg/ai"
	"schedbot-backend/pkg/smtp"
)

var testHours = availability.WorkingHours{StartHour: 9, EndHour: 17}

// Monday March 2nd 2026
func day(d, h, m int) time.Time {
	return time.Date(2026, 3, d, h, m, 0, 0, time.UTC)
}

func newTestRepo(t *testing.T) repository.NegotiationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A second pooled connection to :memory: would see its own empty
	// database; keep everything on one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Negotiation{}, &domain.GuestResponse{}, &domain.ThreadMessage{}))
	t.Cleanup(func() { sqlDB.Close() })
	return repository.NewNegotiationRepository(db)
}

// fakeCalendar is an in-memory CalendarService. Booked slots become busy, so
// a second Book on the same interval fails the way the live calendar would.
type fakeCalendar struct {
	mu       sync.Mutex
	busy     []domain.Slot
	bookErrs []error // popped per Book call before the free check
	booked   []domain.Slot
	events   int
}

func (f *fakeCalendar) BusyIntervals(_ context.Context, window domain.Slot) ([]domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Slot
	for _, b := range f.busy {
		if b.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeCalendar) IsFree(_ context.Context, slot domain.Slot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.busy {
		if b.Overlaps(slot) {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeCalendar) Book(_ context.Context, slot domain.Slot, _ *domain.Negotiation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bookErrs) > 0 {
		err := f.bookErrs[0]
		f.bookErrs = f.bookErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.busy = append(f.busy, slot)
	f.booked = append(f.booked, slot)
	f.events++
	return fmt.Sprintf("evt-%d", f.events), nil
}

// fakeModel is a scripted language-model collaborator
type fakeModel struct {
	mu          sync.Mutex
	scheduling  bool
	classifyErr error
	details     *ai.ExtractedDetails
	detailsErr  error
	replies     map[string]*ai.GuestReply // keyed by sender
	replyErr    error
	drafts      []ai.DraftInput
}

func (f *fakeModel) ClassifyIntent(context.Context, string) (bool, error) {
	return f.scheduling, f.classifyErr
}

func (f *fakeModel) ExtractDetails(context.Context, ai.ExtractionInput) (*ai.ExtractedDetails, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	if f.details != nil {
		return f.details, nil
	}
	return &ai.ExtractedDetails{Timeframe: ai.TimeframeNone}, nil
}

func (f *fakeModel) ExtractReply(_ context.Context, in ai.ExtractionInput) (*ai.GuestReply, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	if r, ok := f.replies[in.Sender]; ok {
		return r, nil
	}
	return &ai.GuestReply{}, nil
}

func (f *fakeModel) Draft(_ context.Context, in ai.DraftInput) (string, error) {
	f.mu.Lock()
	f.drafts = append(f.drafts, in)
	f.mu.Unlock()
	return "drafted " + string(in.Kind), nil
}

// fakeSender records outbound mail and mints sequential message-ids
type fakeSender struct {
	mu   sync.Mutex
	sent []smtp.Mail
}

func (f *fakeSender) Send(_ context.Context, m smtp.Mail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return fmt.Sprintf("out-%d@bot.example.com", len(f.sent)), nil
}

// fakeSource returns one scripted batch then empties
type fakeSource struct {
	batch []domain.InboundMessage
}

func (f *fakeSource) FetchUnseen(context.Context) ([]domain.InboundMessage, error) {
	b := f.batch
	f.batch = nil
	return b, nil
}

func collectingNegotiation(id string) *domain.Negotiation {
	return &domain.Negotiation{
		ID:              id,
		Status:          domain.StatusCollecting,
		Subject:         "Project sync",
		DurationMinutes: 30,
		Attendees:       []string{"alice@example.com", "bob@example.com"},
		WindowStart:     day(2, 0, 0),
		WindowEnd:       day(7, 0, 0),
	}
}
