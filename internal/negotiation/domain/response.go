package domain

import "time"

// ResponseStatus is a guest's stated position on the meeting
type ResponseStatus string

const (
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseDeclined  ResponseStatus = "declined"
	ResponseTentative ResponseStatus = "tentative"
)

// GuestResponse records the latest signal from one attendee. A newer
// RespondedAt supersedes an older one for the same attendee; stale writes
// are dropped by the engine so out-of-order delivery cannot regress state.
type GuestResponse struct {
	NegotiationID   string         `json:"negotiation_id" gorm:"primaryKey"`
	Attendee        string         `json:"attendee" gorm:"primaryKey"`
	Status          ResponseStatus `json:"status"`
	PreferredRanges []Slot         `json:"preferred_ranges" gorm:"serializer:json"`
	RespondedAt     time.Time      `json:"responded_at"`
	SourceMessageID string         `json:"source_message_id"`
}

// TableName specifies the table name for GORM
func (GuestResponse) TableName() string {
	return "guest_responses"
}

// Constrained reports whether this guest has stated explicit time preferences
func (r *GuestResponse) Constrained() bool {
	return len(r.PreferredRanges) > 0
}

// Compatible reports whether the slot fits one of the guest's preferred ranges.
// An unconstrained guest is compatible with everything.
func (r *GuestResponse) Compatible(s Slot) bool {
	if !r.Constrained() {
		return true
	}
	for _, pr := range r.PreferredRanges {
		if pr.Covers(s) {
			return true
		}
	}
	return false
}
