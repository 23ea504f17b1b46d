package ai

import (
	"context"
	"fmt"
	"time"
)

// TimeRange is a half-open [Start, End) interval stated or offered in an email
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Timeframe classifies how a message talked about timing
type Timeframe string

const (
	TimeframeExplicit Timeframe = "explicit"  // concrete times or ranges given
	TimeframeThisWeek Timeframe = "this_week" // relative phrase like "this week"
	TimeframeNone     Timeframe = "none"      // no timing mentioned at all
)

// ExtractionInput carries one message plus the context the model needs to
// ground relative dates. Now is the message timestamp, not the wall clock,
// so re-processing the same message yields the same answer.
type ExtractionInput struct {
	Body     string
	Sender   string
	To       []string
	Cc       []string
	Now      time.Time
	Timezone string
}

// ExtractedDetails is the structured result of detail extraction
type ExtractedDetails struct {
	DurationMinutes int
	Timeframe       Timeframe
	Ranges          []TimeRange
	Attendees       []string
	Title           string
	Description     string
	Location        string
}

// GuestReply is the structured result of parsing a reply on an existing thread
type GuestReply struct {
	Status          string // accepted, declined, tentative or empty
	PreferredRanges []TimeRange
	WantsCancel     bool
}

// DraftKind selects the outbound email being drafted
type DraftKind string

const (
	DraftProposal     DraftKind = "proposal"
	DraftConfirmation DraftKind = "confirmation"
	DraftNoSlots      DraftKind = "no_slots"
)

// DraftInput is the factual payload for an outbound draft. The engine decides
// which facts to include; the model only picks the wording.
type DraftInput struct {
	Kind            DraftKind
	Subject         string
	Title           string
	DurationMinutes int
	Location        string
	Slots           []TimeRange
	Chosen          *TimeRange
	Timezone        string
}

// Scheduler is the language-model collaborator. Implementations are stateless
// from the caller's view but non-deterministic; every output is validated and
// malformed responses surface as *ModelOutputError.
type Scheduler interface {
	ClassifyIntent(ctx context.Context, body string) (bool, error)
	ExtractDetails(ctx context.Context, in ExtractionInput) (*ExtractedDetails, error)
	ExtractReply(ctx context.Context, in ExtractionInput) (*GuestReply, error)
	Draft(ctx context.Context, in DraftInput) (string, error)
}

// ModelOutputError marks a model response that could not be parsed into the
// expected structure. Callers retry once with a stricter re-ask before giving up.
type ModelOutputError struct {
	Op  string
	Raw string
	Err error
}

func (e *ModelOutputError) Error() string {
	return fmt.Sprintf("ai: malformed %s output: %v", e.Op, e.Err)
}

func (e *ModelOutputError) Unwrap() error { return e.Err }

// generator is the lowest-level provider contract: prompt in, raw text out
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}
