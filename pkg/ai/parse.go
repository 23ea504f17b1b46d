package ai

import (
	"fmt"
	"strings"
	"time"
)

// promptTimeLayout is the format the prompts ask the model to emit times in.
// Parsed in the configured timezone so "14:00" means local wall time.
const promptTimeLayout = "2006-01-02 15:04"

// extractJSON pulls the first JSON object or array out of a model response,
// stripping markdown code fences the model may wrap it in.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	text = strings.TrimSpace(text)

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	start := objStart
	open, close := "{", "}"
	if start == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		open, close = "[", "]"
	}
	if start == -1 {
		return text
	}
	end := strings.LastIndex(text, close)
	if end > start {
		return text[start : end+1]
	}
	_ = open
	return text
}

// parsePromptTime parses a model-emitted time string in the given location
func parsePromptTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{promptTimeLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// parseRangeStrings converts wire ranges into TimeRanges, requiring start < end
func parseRangeStrings(in []wireRange, loc *time.Location) ([]TimeRange, error) {
	var out []TimeRange
	for _, r := range in {
		start, err := parsePromptTime(r.Start, loc)
		if err != nil {
			return nil, err
		}
		end, err := parsePromptTime(r.End, loc)
		if err != nil {
			return nil, err
		}
		if !start.Before(end) {
			return nil, fmt.Errorf("range start %s not before end %s", r.Start, r.End)
		}
		out = append(out, TimeRange{Start: start, End: end})
	}
	return out, nil
}

// wireRange is how ranges travel in model JSON
type wireRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
