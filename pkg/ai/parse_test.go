package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading prose", `Sure, here you go: {"a": 1}`, `{"a": 1}`},
		{"trailing prose", `{"a": 1} hope that helps!`, `{"a": 1}`},
		{"array", `the slots are [1, 2, 3]`, `[1, 2, 3]`},
		{"no json at all", "no structure here", "no structure here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestParsePromptTime_AcceptedLayouts(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := parsePromptTime("2026-03-03 14:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 14, 0, 0, 0, loc), got)

	got, err = parsePromptTime("2026-03-03T14:00:00", loc)
	require.NoError(t, err)
	assert.Equal(t, 14, got.Hour())

	got, err = parsePromptTime("2026-03-03", loc)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Hour())
}

func TestParsePromptTime_RejectsGarbage(t *testing.T) {
	_, err := parsePromptTime("next Tuesday-ish", time.UTC)
	assert.Error(t, err)
}

func TestParseRangeStrings(t *testing.T) {
	got, err := parseRangeStrings([]wireRange{
		{Start: "2026-03-03 14:00", End: "2026-03-03 16:00"},
	}, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2*time.Hour, got[0].End.Sub(got[0].Start))

	_, err = parseRangeStrings([]wireRange{
		{Start: "2026-03-03 16:00", End: "2026-03-03 16:00"},
	}, time.UTC)
	assert.Error(t, err)
}
