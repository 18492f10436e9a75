package failurecause

import (
	"context"
	"errors"
	"strings"

	"github.com/estafette/estafette-ci-notifier/api"
)

// NewNoopAnalyzer returns an Analyzer for hosts without failure analysis
func NewNoopAnalyzer() Analyzer {
	return &noopAnalyzer{}
}

type noopAnalyzer struct{}

func (a *noopAnalyzer) Actions(ctx context.Context, event api.BuildEvent) ([]Action, error) {
	return nil, nil
}

// NewEventAnalyzer returns an Analyzer reading the actions the host attached to the build event
func NewEventAnalyzer() Analyzer {
	return &eventAnalyzer{}
}

type eventAnalyzer struct{}

func (a *eventAnalyzer) Actions(ctx context.Context, event api.BuildEvent) (actions []Action, err error) {
	actions = make([]Action, 0, len(event.Actions))
	for _, action := range event.Actions {
		actions = append(actions, eventAction{action: action})
	}
	return
}

type eventAction struct {
	action api.FailureCauseAction
}

func (a eventAction) DisplayName() string {
	return a.action.DisplayName
}

func (a eventAction) FoundFailureCauses() (causes []Cause, err error) {
	if a.action.FailureCauses == nil {
		return nil, errors.New("Action does not carry failure causes")
	}

	causes = make([]Cause, 0, len(a.action.FailureCauses))
	for _, c := range a.action.FailureCauses {
		causes = append(causes, eventCause{cause: c})
	}
	return
}

type eventCause struct {
	cause api.FailureCause
}

func (c eventCause) Name() (string, error) {
	if strings.TrimSpace(c.cause.Name) == "" {
		return "", errors.New("Failure cause has no name")
	}
	return c.cause.Name, nil
}
