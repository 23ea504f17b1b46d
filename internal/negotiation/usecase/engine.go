package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"schedbot-backend/internal/availability"
	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/internal/negotiation/repository"
	"schedbot-backend/pkg/ai"
	"schedbot-backend/pkg/calendar"
)

// ActionKind is what the engine wants said to the thread after a step
type ActionKind string

const (
	ActionNone    ActionKind = "none"
	ActionPropose ActionKind = "propose"
	ActionConfirm ActionKind = "confirm"
	ActionNoSlots ActionKind = "no_slots"
)

// Decision is the outcome of one engine step. Slots carries the proposal
// candidates for ActionPropose; Chosen carries the booked interval for
// ActionConfirm.
type Decision struct {
	Kind   ActionKind
	Slots  []domain.Slot
	Chosen *domain.Slot
}

// Engine advances a negotiation through its lifecycle: ingest the latest
// guest signal, refresh calendar availability, and either book a consensus
// slot, propose candidates, give up, or stay quiet. Each step persists the
// negotiation before returning so a crash between step and send loses at
// most an outbound email, never booked state.
type Engine struct {
	repo          repository.NegotiationRepository
	calendar      CalendarService
	hours         availability.WorkingHours
	loc           *time.Location
	maxRounds     int
	proposalCount int
}

// NewEngine creates a negotiation decision engine
func NewEngine(repo repository.NegotiationRepository, cal CalendarService, hours availability.WorkingHours, loc *time.Location, maxRounds, proposalCount int) *Engine {
	return &Engine{
		repo:          repo,
		calendar:      cal,
		hours:         hours,
		loc:           loc,
		maxRounds:     maxRounds,
		proposalCount: proposalCount,
	}
}

// Ingest folds one message's guest signal into the negotiation without
// deciding anything. reply is nil for the initiating message and for
// follow-ups that carry no guest signal. Replies landing in the same batch
// are all ingested before a single Decide, so two guests answering together
// are weighed together.
func (e *Engine) Ingest(ctx context.Context, n *domain.Negotiation, msg *domain.InboundMessage, reply *ai.GuestReply) error {
	if n.Terminal() || reply == nil {
		return nil
	}
	if reply.WantsCancel {
		n.Status = domain.StatusCancelled
		if err := e.repo.Save(ctx, n); err != nil {
			return err
		}
		log.Printf("[Engine] negotiation %s cancelled by %s", n.ID, msg.Sender)
		return nil
	}
	return e.ingestReply(ctx, n, msg, reply)
}

// Decide refreshes availability, looks for consensus and commits the next
// action. The negotiation is persisted before the decision is returned so a
// crash between decide and send loses at most an outbound email, never
// booked state.
func (e *Engine) Decide(ctx context.Context, n *domain.Negotiation) (Decision, error) {
	if n.Terminal() {
		return Decision{Kind: ActionNone}, nil
	}
	if err := e.refreshSlots(ctx, n); err != nil {
		return Decision{}, err
	}
	decision, err := e.decide(ctx, n)
	if err != nil {
		return Decision{}, err
	}
	if err := e.repo.Save(ctx, n); err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Step ingests one message and decides immediately
func (e *Engine) Step(ctx context.Context, n *domain.Negotiation, msg *domain.InboundMessage, reply *ai.GuestReply) (Decision, error) {
	if err := e.Ingest(ctx, n, msg, reply); err != nil {
		return Decision{}, err
	}
	return e.Decide(ctx, n)
}

// ingestReply records the guest's latest position. A stale reply (older than
// what is already stored for that guest) is dropped, so out-of-order batches
// converge on the same state.
func (e *Engine) ingestReply(ctx context.Context, n *domain.Negotiation, msg *domain.InboundMessage, reply *ai.GuestReply) error {
	for _, prev := range n.Responses {
		if prev.Attendee == msg.Sender && prev.RespondedAt.After(msg.Timestamp) {
			log.Printf("[Engine] dropping stale reply %s from %s for negotiation %s", msg.MessageID, msg.Sender, n.ID)
			return nil
		}
	}

	status := domain.ResponseStatus(reply.Status)
	ranges := normalizeRanges(reply.PreferredRanges, n.Duration())
	// Stating time preferences without an explicit verdict counts as
	// conditional acceptance.
	if status == "" && len(ranges) > 0 {
		status = domain.ResponseAccepted
	}
	if status == "" {
		return nil
	}

	resp := domain.GuestResponse{
		NegotiationID:   n.ID,
		Attendee:        msg.Sender,
		Status:          status,
		PreferredRanges: ranges,
		RespondedAt:     msg.Timestamp,
		SourceMessageID: msg.MessageID,
	}
	if err := e.repo.UpsertResponse(ctx, &resp); err != nil {
		return err
	}

	// Mirror into the loaded aggregate so this step decides on fresh state.
	replaced := false
	for i := range n.Responses {
		if n.Responses[i].Attendee == msg.Sender {
			n.Responses[i] = resp
			replaced = true
			break
		}
	}
	if !replaced {
		n.Responses = append(n.Responses, resp)
	}
	return nil
}

// refreshSlots recomputes the candidate slots from live calendar busy data
func (e *Engine) refreshSlots(ctx context.Context, n *domain.Negotiation) error {
	var busy []domain.Slot
	err := withRetry(ctx, defaultRetryConfig, func() error {
		var err error
		busy, err = e.calendar.BusyIntervals(ctx, n.Window())
		return err
	})
	if err != nil {
		return fmt.Errorf("refresh availability: %w", err)
	}
	n.AvailableSlots = availability.FreeSlots(n.Window(), busy, e.hours, n.Duration(), e.loc)
	return nil
}

// decide looks for a consensus slot and books it, otherwise proposes or gives up
func (e *Engine) decide(ctx context.Context, n *domain.Negotiation) (Decision, error) {
	for {
		slot, ok := e.consensusSlot(n)
		if !ok {
			break
		}
		eventID, err := e.calendar.Book(ctx, slot, n)
		if errors.Is(err, calendar.ErrSlotTaken) {
			// Slot vanished between the free check and now. Drop it and
			// look for the next consensus candidate.
			log.Printf("[Engine] slot %s taken before booking for negotiation %s, trying next", slot.Start, n.ID)
			n.AvailableSlots = removeSlot(n.AvailableSlots, slot)
			continue
		}
		if err != nil {
			return Decision{}, fmt.Errorf("book slot: %w", err)
		}
		n.SetChosenSlot(slot)
		n.Status = domain.StatusScheduled
		n.CalendarEventID = eventID
		log.Printf("[Engine] negotiation %s scheduled at %s (event %s)", n.ID, slot.Start, eventID)
		return Decision{Kind: ActionConfirm, Chosen: &slot}, nil
	}

	if n.RoundCount >= e.maxRounds {
		n.Status = domain.StatusFailed
		log.Printf("[Engine] negotiation %s exhausted %d rounds without consensus", n.ID, n.RoundCount)
		return Decision{Kind: ActionNoSlots}, nil
	}

	if len(n.AvailableSlots) == 0 {
		n.Status = domain.StatusFailed
		log.Printf("[Engine] negotiation %s has no free slots in its window", n.ID)
		return Decision{Kind: ActionNoSlots}, nil
	}

	n.RoundCount++
	proposal := n.AvailableSlots
	if len(proposal) > e.proposalCount {
		proposal = proposal[:e.proposalCount]
	}
	return Decision{Kind: ActionPropose, Slots: proposal}, nil
}

// consensusSlot returns the earliest available slot every constrained guest
// can attend. There is no consensus until at least one guest has stated a
// preference, and a declined guest blocks everything until they revise.
func (e *Engine) consensusSlot(n *domain.Negotiation) (domain.Slot, bool) {
	constrained := 0
	for i := range n.Responses {
		r := &n.Responses[i]
		if r.Status == domain.ResponseDeclined && !r.Constrained() {
			return domain.Slot{}, false
		}
		if r.Constrained() {
			constrained++
		}
	}
	if constrained == 0 {
		return domain.Slot{}, false
	}

	best := -1
	bestAccepts := 0
	for i, slot := range n.AvailableSlots {
		fits := true
		accepts := 0
		for j := range n.Responses {
			r := &n.Responses[j]
			if !r.Compatible(slot) {
				fits = false
				break
			}
			if r.Status == domain.ResponseAccepted {
				accepts++
			}
		}
		if !fits {
			continue
		}
		// Slots are sorted by start, so the first hit is the earliest;
		// among equal starts prefer the one more guests accepted.
		if best == -1 {
			best, bestAccepts = i, accepts
		} else if n.AvailableSlots[i].Start.Equal(n.AvailableSlots[best].Start) && accepts > bestAccepts {
			best, bestAccepts = i, accepts
		} else {
			break
		}
	}
	if best == -1 {
		return domain.Slot{}, false
	}
	return n.AvailableSlots[best], true
}

// normalizeRanges drops malformed or too-short preferred ranges
func normalizeRanges(in []ai.TimeRange, minDuration time.Duration) []domain.Slot {
	var out []domain.Slot
	for _, r := range in {
		if !r.Start.Before(r.End) {
			continue
		}
		if r.End.Sub(r.Start) < minDuration {
			continue
		}
		out = append(out, domain.Slot{Start: r.Start, End: r.End})
	}
	return out
}

// removeSlot returns slots without the given interval
func removeSlot(slots []domain.Slot, s domain.Slot) []domain.Slot {
	out := slots[:0]
	for _, sl := range slots {
		if !sl.Equal(s) {
			out = append(out, sl)
		}
	}
	return out
}
