package usecase

import (
	"context"

	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/pkg/smtp"
)

// EmailSource yields unseen messages; consumption is committed at fetch time
type EmailSource interface {
	FetchUnseen(ctx context.Context) ([]domain.InboundMessage, error)
}

// MailSender delivers a threaded reply and returns the new message-id
type MailSender interface {
	Send(ctx context.Context, m smtp.Mail) (string, error)
}

// CalendarService probes availability and commits bookings
type CalendarService interface {
	// BusyIntervals returns busy periods inside the window
	BusyIntervals(ctx context.Context, window domain.Slot) ([]domain.Slot, error)
	// IsFree re-checks a single interval
	IsFree(ctx context.Context, slot domain.Slot) (bool, error)
	// Book inserts the event, or calendar.ErrSlotTaken if the slot is gone
	Book(ctx context.Context, slot domain.Slot, n *domain.Negotiation) (string, error)
}
