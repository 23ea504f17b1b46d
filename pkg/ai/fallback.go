package ai

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackGenerator routes between providers: Gemini first (better at
// structured extraction), Ollama as the local fallback when Gemini is
// unreachable or over quota.
type FallbackGenerator struct {
	primary   generator
	secondary generator
}

// NewFallbackGenerator creates a generator that prefers primary and falls
// back to secondary on connection or quota errors.
func NewFallbackGenerator(primary, secondary generator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, secondary: secondary}
}

// Name implements generator
func (f *FallbackGenerator) Name() string {
	return fmt.Sprintf("%s+%s", f.primary.Name(), f.secondary.Name())
}

// Generate implements generator
func (f *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := f.primary.Generate(ctx, prompt)
	if err == nil {
		return result, nil
	}

	if isConnectionError(err) || isQuotaError(err) {
		log.Printf("[AI] %s unavailable: %v, falling back to %s", f.primary.Name(), err, f.secondary.Name())
	} else {
		log.Printf("[AI] %s error: %v, trying %s", f.primary.Name(), err, f.secondary.Name())
	}

	result, err2 := f.secondary.Generate(ctx, prompt)
	if err2 != nil {
		return "", fmt.Errorf("%s failed after %s failed (%v): %w", f.secondary.Name(), f.primary.Name(), err, err2)
	}
	return result, nil
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(net.Error); ok {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
