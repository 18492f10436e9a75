package api

import (
	"fmt"
	"strings"

	contracts "github.com/estafette/estafette-ci-contracts"
)

// BuildOutcome is the result of a finished build, ordered from best to worst
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "SUCCESS"
	OutcomeUnstable BuildOutcome = "UNSTABLE"
	OutcomeFailure  BuildOutcome = "FAILURE"
	OutcomeNotBuilt BuildOutcome = "NOT_BUILT"
	OutcomeAborted  BuildOutcome = "ABORTED"
)

// BuildOutcomes lists all outcomes from best to worst
var BuildOutcomes = []BuildOutcome{
	OutcomeSuccess,
	OutcomeUnstable,
	OutcomeFailure,
	OutcomeNotBuilt,
	OutcomeAborted,
}

// Ordinal returns the position of the outcome in the severity ordering, or -1 for an unknown outcome
func (o BuildOutcome) Ordinal() int {
	for i, bo := range BuildOutcomes {
		if bo == o {
			return i
		}
	}
	return -1
}

// IsValid returns true if the outcome is one of the five known outcomes
func (o BuildOutcome) IsValid() bool {
	return o.Ordinal() >= 0
}

// IsBetterOrEqualTo returns true if o is at or closer to SUCCESS than other
func (o BuildOutcome) IsBetterOrEqualTo(other BuildOutcome) bool {
	if !o.IsValid() || !other.IsValid() {
		return false
	}
	return o.Ordinal() <= other.Ordinal()
}

// IsWorseThan returns true if o is strictly further away from SUCCESS than other
func (o BuildOutcome) IsWorseThan(other BuildOutcome) bool {
	if !o.IsValid() || !other.IsValid() {
		return false
	}
	return o.Ordinal() > other.Ordinal()
}

func (o BuildOutcome) String() string {
	return string(o)
}

// ParseBuildOutcome converts a case-insensitive outcome name into a BuildOutcome
func ParseBuildOutcome(value string) (BuildOutcome, error) {
	candidate := BuildOutcome(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}

	return "", fmt.Errorf("Build outcome '%v' is unknown, should be one of %v", value, BuildOutcomes)
}

// OutcomeFromLogStatus maps the status of an estafette build onto a BuildOutcome
func OutcomeFromLogStatus(status contracts.LogStatus) BuildOutcome {
	switch {
	case strings.EqualFold(string(status), string(contracts.LogStatusSucceeded)):
		return OutcomeSuccess
	case strings.EqualFold(string(status), string(contracts.LogStatusFailed)):
		return OutcomeFailure
	case strings.EqualFold(string(status), string(contracts.LogStatusCanceled)):
		return OutcomeAborted
	}

	// skipped, pending and running builds never ran to completion
	return OutcomeNotBuilt
}
