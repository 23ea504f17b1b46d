package domain

import "time"

// NegotiationStatus is the lifecycle state of a negotiation
type NegotiationStatus string

const (
	StatusCollecting NegotiationStatus = "collecting"
	StatusScheduled  NegotiationStatus = "scheduled"
	StatusCancelled  NegotiationStatus = "cancelled"
	StatusFailed     NegotiationStatus = "failed"
)

// Slot is a candidate meeting interval [Start, End)
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the slot
func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two slots share any time
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Covers reports whether o lies entirely inside s
func (s Slot) Covers(o Slot) bool {
	return !o.Start.Before(s.Start) && !o.End.After(s.End)
}

// Equal reports whether two slots describe the same interval
func (s Slot) Equal(o Slot) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

// Negotiation is the aggregate tracking one meeting request from the first
// email through scheduling or termination. Its ID is the message-id of the
// email that started the thread.
type Negotiation struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	Status          NegotiationStatus `json:"status" gorm:"index;not null;default:collecting"`
	Subject         string            `json:"subject"`
	Title           string            `json:"title"`
	Description     string            `json:"description" gorm:"type:text"`
	Location        string            `json:"location"`
	DurationMinutes int               `json:"duration_minutes"`
	Attendees       []string          `json:"attendees" gorm:"serializer:json"`
	WindowStart     time.Time         `json:"window_start"`
	WindowEnd       time.Time         `json:"window_end"`
	AvailableSlots  []Slot            `json:"available_slots" gorm:"serializer:json"`
	ChosenStart     *time.Time        `json:"chosen_start"`
	ChosenEnd       *time.Time        `json:"chosen_end"`
	RoundCount      int               `json:"round_count"`
	CalendarEventID string            `json:"calendar_event_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	Responses []GuestResponse `json:"responses,omitempty" gorm:"foreignKey:NegotiationID"`
}

// TableName specifies the table name for GORM
func (Negotiation) TableName() string {
	return "negotiations"
}

// Terminal reports whether the negotiation can no longer change
func (n *Negotiation) Terminal() bool {
	return n.Status == StatusScheduled || n.Status == StatusCancelled || n.Status == StatusFailed
}

// Duration returns the meeting length
func (n *Negotiation) Duration() time.Duration {
	return time.Duration(n.DurationMinutes) * time.Minute
}

// Window returns the search range as a slot
func (n *Negotiation) Window() Slot {
	return Slot{Start: n.WindowStart, End: n.WindowEnd}
}

// ChosenSlot returns the booked interval, or nil if none is set.
// Present iff Status == scheduled.
func (n *Negotiation) ChosenSlot() *Slot {
	if n.ChosenStart == nil || n.ChosenEnd == nil {
		return nil
	}
	return &Slot{Start: *n.ChosenStart, End: *n.ChosenEnd}
}

// SetChosenSlot records the booked interval
func (n *Negotiation) SetChosenSlot(s Slot) {
	start, end := s.Start, s.End
	n.ChosenStart = &start
	n.ChosenEnd = &end
}

// HasAttendee reports whether addr is in the attendee set
func (n *Negotiation) HasAttendee(addr string) bool {
	for _, a := range n.Attendees {
		if a == addr {
			return true
		}
	}
	return false
}
