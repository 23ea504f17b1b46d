package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// strictSuffix is appended on the single re-ask after a malformed response
const strictSuffix = "\n\nIMPORTANT: your previous answer was not valid. Respond with ONLY the JSON object described above. No prose, no markdown fences, no extra keys."

// Service implements Scheduler on top of a raw text generator. It owns the
// prompts, the strict JSON parsing, and the one stricter re-ask allowed on
// malformed output.
type Service struct {
	gen            generator
	authorizedUser string
	loc            *time.Location
}

// NewService wraps a generator with the scheduling prompts
func NewService(gen generator, authorizedUser string, loc *time.Location) *Service {
	return &Service{gen: gen, authorizedUser: authorizedUser, loc: loc}
}

// generateStructured runs the prompt, parses the reply, and on a parse
// failure re-asks once with stricter instructions before giving up.
func (s *Service) generateStructured(ctx context.Context, op, prompt string, parse func(string) error) error {
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	perr := parse(extractJSON(raw))
	if perr == nil {
		return nil
	}

	log.Printf("[AI] malformed %s output (%v), re-asking once", op, perr)
	raw, err = s.gen.Generate(ctx, prompt+strictSuffix)
	if err != nil {
		return fmt.Errorf("%s re-ask: %w", op, err)
	}
	if perr = parse(extractJSON(raw)); perr != nil {
		return &ModelOutputError{Op: op, Raw: raw, Err: perr}
	}
	return nil
}

// ClassifyIntent implements Scheduler
func (s *Service) ClassifyIntent(ctx context.Context, body string) (bool, error) {
	prompt := fmt.Sprintf(`You are the AI scheduler for user: %s

Email:
%s

Determine if this email is about scheduling a meeting.

Respond with JSON only:
{"is_scheduling": true or false, "reason": "why this classification"}`, s.authorizedUser, body)

	var result bool
	err := s.generateStructured(ctx, "classify", prompt, func(raw string) error {
		var parsed struct {
			IsScheduling *bool  `json:"is_scheduling"`
			Reason       string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return err
		}
		if parsed.IsScheduling == nil {
			return fmt.Errorf("is_scheduling missing or not a boolean")
		}
		result = *parsed.IsScheduling
		return nil
	})
	if err != nil {
		return false, err
	}
	return result, nil
}

// ExtractDetails implements Scheduler
func (s *Service) ExtractDetails(ctx context.Context, in ExtractionInput) (*ExtractedDetails, error) {
	now := in.Now.In(s.loc)
	prompt := fmt.Sprintf(`You are the AI scheduler for user: %s

Today's date: %s (%s)
All times are in timezone %s.

Email participants:
From: %s
To: %s
CC: %s

Email:
%s

Extract meeting details with these rules:
1. Timeframe classification:
   - "explicit" if specific times or ranges are given (e.g. "Tuesday 2-3pm"); list each as a range
   - "this_week" if only a general relative phrase is used (e.g. "this week", "in the next few days")
   - "none" if no timeframe is mentioned
2. Duration: use the explicitly mentioned duration in minutes, or 0 if not specified
3. Attendees: every email address that should attend the meeting
4. Title: a short meeting title, empty if none can be inferred
5. Description: meeting purpose and agenda, empty if none
6. Location: meeting room, address or conference link, empty if none

Respond with JSON only:
{"duration_minutes": 0, "timeframe": "explicit|this_week|none", "ranges": [{"start": "YYYY-MM-DD HH:MM", "end": "YYYY-MM-DD HH:MM"}], "attendees": ["a@example.com"], "title": "", "description": "", "location": ""}`,
		s.authorizedUser,
		now.Format("2006-01-02"), now.Weekday(),
		s.loc.String(),
		in.Sender,
		strings.Join(in.To, ", "),
		strings.Join(in.Cc, ", "),
		in.Body)

	var details *ExtractedDetails
	err := s.generateStructured(ctx, "extract_details", prompt, func(raw string) error {
		var parsed struct {
			DurationMinutes int         `json:"duration_minutes"`
			Timeframe       string      `json:"timeframe"`
			Ranges          []wireRange `json:"ranges"`
			Attendees       []string    `json:"attendees"`
			Title           string      `json:"title"`
			Description     string      `json:"description"`
			Location        string      `json:"location"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return err
		}
		tf := Timeframe(parsed.Timeframe)
		switch tf {
		case TimeframeExplicit, TimeframeThisWeek, TimeframeNone:
		default:
			return fmt.Errorf("timeframe %q is not one of explicit/this_week/none", parsed.Timeframe)
		}
		if parsed.DurationMinutes < 0 {
			return fmt.Errorf("duration_minutes is negative")
		}
		ranges, err := parseRangeStrings(parsed.Ranges, s.loc)
		if err != nil {
			return err
		}
		if tf == TimeframeExplicit && len(ranges) == 0 {
			return fmt.Errorf("timeframe is explicit but no ranges were given")
		}
		details = &ExtractedDetails{
			DurationMinutes: parsed.DurationMinutes,
			Timeframe:       tf,
			Ranges:          ranges,
			Attendees:       parsed.Attendees,
			Title:           strings.TrimSpace(parsed.Title),
			Description:     strings.TrimSpace(parsed.Description),
			Location:        strings.TrimSpace(parsed.Location),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ExtractReply implements Scheduler
func (s *Service) ExtractReply(ctx context.Context, in ExtractionInput) (*GuestReply, error) {
	now := in.Now.In(s.loc)
	prompt := fmt.Sprintf(`You are the AI scheduler for user: %s

Today's date: %s (%s)
All times are in timezone %s.

A guest (%s) replied on an ongoing meeting scheduling thread:
%s

Extract the guest's position:
1. status: "accepted" if they agree to meet, "declined" if they refuse, "tentative" if unsure, "none" if no position is stated
2. preferred_ranges: every concrete time or range they say works for them
3. wants_cancel: true only if they ask to cancel or call off the meeting entirely

Respond with JSON only:
{"status": "accepted|declined|tentative|none", "preferred_ranges": [{"start": "YYYY-MM-DD HH:MM", "end": "YYYY-MM-DD HH:MM"}], "wants_cancel": false}`,
		s.authorizedUser,
		now.Format("2006-01-02"), now.Weekday(),
		s.loc.String(),
		in.Sender,
		in.Body)

	var reply *GuestReply
	err := s.generateStructured(ctx, "extract_reply", prompt, func(raw string) error {
		var parsed struct {
			Status          string      `json:"status"`
			PreferredRanges []wireRange `json:"preferred_ranges"`
			WantsCancel     bool        `json:"wants_cancel"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return err
		}
		status := strings.ToLower(strings.TrimSpace(parsed.Status))
		switch status {
		case "accepted", "declined", "tentative":
		case "none", "":
			status = ""
		default:
			return fmt.Errorf("status %q is not one of accepted/declined/tentative/none", parsed.Status)
		}
		ranges, err := parseRangeStrings(parsed.PreferredRanges, s.loc)
		if err != nil {
			return err
		}
		reply = &GuestReply{Status: status, PreferredRanges: ranges, WantsCancel: parsed.WantsCancel}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Draft implements Scheduler
func (s *Service) Draft(ctx context.Context, in DraftInput) (string, error) {
	var instructions string
	switch in.Kind {
	case DraftProposal:
		instructions = fmt.Sprintf(`Draft a concise email proposing times for a %d-minute meeting%s.

Available slots:
%s

The email must:
1. List the available time slots exactly as given
2. Ask recipients to reply with their preferred time
3. Stay short and professional`, in.DurationMinutes, titleClause(in.Title), s.formatRanges(in.Slots))
	case DraftConfirmation:
		chosen := ""
		if in.Chosen != nil {
			chosen = s.formatRange(*in.Chosen)
		}
		instructions = fmt.Sprintf(`Draft a brief confirmation email for a %d-minute meeting%s.
The meeting is scheduled for %s.%s

The email must:
1. Confirm the scheduled time exactly as given
2. Stay short and professional`, in.DurationMinutes, titleClause(in.Title), chosen, locationClause(in.Location))
	case DraftNoSlots:
		instructions = fmt.Sprintf(`Draft a brief email explaining that no suitable time could be found for a %d-minute meeting%s.

The email must:
1. Apologize for the inconvenience
2. Suggest trying a different week or timeframe
3. Stay short and professional`, in.DurationMinutes, titleClause(in.Title))
	default:
		return "", fmt.Errorf("unknown draft kind %q", in.Kind)
	}

	prompt := fmt.Sprintf(`You are the AI scheduler for user: %s

Original subject: %s

%s

Respond with JSON only:
{"body": "the email body"}`, s.authorizedUser, in.Subject, instructions)

	var body string
	err := s.generateStructured(ctx, "draft", prompt, func(raw string) error {
		var parsed struct {
			Body string `json:"body"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return err
		}
		if strings.TrimSpace(parsed.Body) == "" {
			return fmt.Errorf("body is empty")
		}
		body = strings.TrimSpace(parsed.Body)
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (s *Service) formatRange(r TimeRange) string {
	start := r.Start.In(s.loc)
	end := r.End.In(s.loc)
	return fmt.Sprintf("%s to %s", start.Format("3:04 PM on Monday, January 2, 2006"), end.Format("3:04 PM"))
}

func (s *Service) formatRanges(ranges []TimeRange) string {
	lines := make([]string, 0, len(ranges))
	for _, r := range ranges {
		lines = append(lines, "- "+s.formatRange(r))
	}
	return strings.Join(lines, "\n")
}

func titleClause(title string) string {
	if title == "" {
		return ""
	}
	return fmt.Sprintf(" about %q", title)
}

func locationClause(location string) string {
	if location == "" {
		return ""
	}
	return fmt.Sprintf("\nLocation: %s", location)
}
