package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IntermediateBuildMarker is the literal token in a build url that marks a matrix or sub build
const IntermediateBuildMarker = "$"

// BuildRecord is a finished build as supplied by the host; it is never mutated here
type BuildRecord struct {
	ID          string            `json:"id" yaml:"id"`
	PreviousID  string            `json:"previousId,omitempty" yaml:"previousId,omitempty"`
	Number      int               `json:"number" yaml:"number"`
	ProjectName string            `json:"projectName" yaml:"projectName"`
	DisplayName string            `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	URL         string            `json:"url" yaml:"url"`
	Outcome     BuildOutcome      `json:"outcome" yaml:"outcome"`
	Duration    time.Duration     `json:"duration,omitempty" yaml:"duration,omitempty"`
	Timestamp   time.Time         `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// HasPrevious returns true if the build links to a predecessor in the host's build history
func (b BuildRecord) HasPrevious() bool {
	return b.PreviousID != ""
}

// IsIntermediate returns true for matrix or sub builds, recognized by the marker in url or id
func (b BuildRecord) IsIntermediate() bool {
	return strings.Contains(b.URL, IntermediateBuildMarker) || strings.Contains(b.ID, IntermediateBuildMarker)
}

// GetDisplayName returns the display name, falling back to #<number>
func (b BuildRecord) GetDisplayName() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return fmt.Sprintf("#%v", b.Number)
}

// FullDisplayName returns project name and display name, e.g. 'my-app #12'
func (b BuildRecord) FullDisplayName() string {
	if b.ProjectName == "" {
		return b.GetDisplayName()
	}
	return fmt.Sprintf("%v %v", b.ProjectName, b.GetDisplayName())
}

// Validate checks whether the record carries enough information to be notified about
func (b BuildRecord) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("Build id is empty")
	}
	if !b.Outcome.IsValid() {
		return fmt.Errorf("Build %v has unknown outcome '%v'", b.ID, b.Outcome)
	}
	if b.PreviousID == b.ID {
		return fmt.Errorf("Build %v references itself as previous build", b.ID)
	}
	return nil
}

// FailureCause is a named diagnostic record attached to a failed build by an external analyzer
type FailureCause struct {
	Name string `json:"name" yaml:"name"`
}

// FailureCauseAction is a build-scoped record of an external analyzer as carried by an inbound event
type FailureCauseAction struct {
	DisplayName   string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	FailureCauses []FailureCause `json:"failureCauses,omitempty" yaml:"failureCauses,omitempty"`
}

// BuildEvent is the build-completion callback received from the host
type BuildEvent struct {
	ID      string               `json:"id,omitempty" yaml:"id,omitempty"`
	Build   BuildRecord          `json:"build" yaml:"build"`
	History []BuildRecord        `json:"history,omitempty" yaml:"history,omitempty"`
	Actions []FailureCauseAction `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// EnsureID assigns a random id to an event that arrived without one, for log correlation
func (e *BuildEvent) EnsureID() {
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}
}
