package api

import (
	"strings"
	"time"
)

// RenderedPayload is the output of one template rendering, validated against its format
type RenderedPayload struct {
	Raw    string
	Format BodyFormat
}

// DeliveryOutcome records a single delivery attempt
type DeliveryOutcome struct {
	Attempt    int
	Success    bool
	StatusCode int
	Err        error
}

// TargetStatus is the final state of one target's pipeline within an event
type TargetStatus string

const (
	TargetStatusSkipped   TargetStatus = "SKIPPED"
	TargetStatusSucceeded TargetStatus = "SUCCEEDED"
	TargetStatusFailed    TargetStatus = "FAILED"
)

// SkipReason explains why a target did not fire
type SkipReason string

const (
	SkipReasonURLBlank          SkipReason = "url-blank"
	SkipReasonIntermediateBuild SkipReason = "intermediate-build"
	SkipReasonThresholdNotMet   SkipReason = "threshold-not-met"
	SkipReasonWhenFalse         SkipReason = "when-false"
)

// TargetResult is the outcome of one target's pipeline for one event
type TargetResult struct {
	Target     string
	URL        string
	Status     TargetStatus
	SkipReason SkipReason
	Payload    string
	Attempts   []DeliveryOutcome
	Err        error
	Duration   time.Duration
}

// HasFailed returns true if any of the results has a fatal error
func HasFailed(results []TargetResult) bool {
	for _, r := range results {
		if r.Status == TargetStatusFailed {
			return true
		}
	}
	return false
}

// SplitFormPair splits a key=value payload on every '=', dropping trailing empty parts; a valid pair yields exactly two parts
func SplitFormPair(raw string) []string {
	parts := strings.Split(raw, "=")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
