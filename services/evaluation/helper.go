package evaluation

import (
	"context"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/history"
	"github.com/rs/zerolog/log"
)

// Status classifies a build relative to its predecessor
type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
	StatusRecovering Status = "recovering"
	StatusWarning    Status = "warning"
	StatusRegressed  Status = "regressed"
)

// IsSuccess returns true for SUCCESS and UNSTABLE outcomes
func IsSuccess(outcome api.BuildOutcome) bool {
	return outcome == api.OutcomeSuccess || outcome == api.OutcomeUnstable
}

// Helper answers status questions for one build; a missing predecessor counts as success
type Helper struct {
	ctx           context.Context
	build         api.BuildRecord
	previous      *api.BuildRecord
	historyClient history.Client
}

// NewHelper returns a Helper for build and its already resolved predecessor; historyClient is only used to walk further back
func NewHelper(ctx context.Context, build api.BuildRecord, previous *api.BuildRecord, historyClient history.Client) *Helper {
	return &Helper{
		ctx:           ctx,
		build:         build,
		previous:      previous,
		historyClient: historyClient,
	}
}

// Build returns the build the helper is bound to
func (h *Helper) Build() api.BuildRecord {
	return h.build
}

// Previous returns the predecessor or nil for a first build
func (h *Helper) Previous() *api.BuildRecord {
	return h.previous
}

func (h *Helper) IsSuccess() bool {
	return IsSuccess(h.build.Outcome)
}

func (h *Helper) IsFailure() bool {
	return !h.IsSuccess()
}

func (h *Helper) IsPreviousSuccess() bool {
	if h.previous == nil {
		return true
	}
	return IsSuccess(h.previous.Outcome)
}

func (h *Helper) IsPreviousFailure() bool {
	return !h.IsPreviousSuccess()
}

// IsRecovering returns true if the previous build failed and this one succeeds
func (h *Helper) IsRecovering() bool {
	return h.IsPreviousFailure() && h.IsSuccess()
}

// IsWarning returns true if the previous build succeeded and this one fails
func (h *Helper) IsWarning() bool {
	return h.IsPreviousSuccess() && h.IsFailure()
}

// IsRegressed returns true if the previous build failed and this one ended even worse
func (h *Helper) IsRegressed() bool {
	return h.previous != nil && h.IsPreviousFailure() && h.build.Outcome.IsWorseThan(h.previous.Outcome)
}

// IsLastNFailed returns true if this build and each of its n most recent predecessors failed;
// it returns false as soon as the history runs out before reaching n
func (h *Helper) IsLastNFailed(n int) bool {
	if h.IsSuccess() {
		return false
	}
	if n <= 0 {
		return true
	}

	visited := map[string]bool{h.build.ID: true}
	current := h.previous

	for i := 0; i < n; i++ {
		if current == nil || visited[current.ID] {
			return false
		}
		if IsSuccess(current.Outcome) {
			return false
		}
		visited[current.ID] = true

		if i == n-1 {
			break
		}
		current = h.lookup(current.PreviousID)
	}

	return true
}

// Status returns recovering, warning, regressed, success or failure, in that order of precedence
func (h *Helper) Status() Status {
	switch {
	case h.IsRecovering():
		return StatusRecovering
	case h.IsWarning():
		return StatusWarning
	case h.IsRegressed():
		return StatusRegressed
	case h.IsSuccess():
		return StatusSuccess
	}
	return StatusFailure
}

func (h *Helper) lookup(id string) *api.BuildRecord {
	if id == "" || h.historyClient == nil {
		return nil
	}

	build, err := h.historyClient.GetBuild(h.ctx, id)
	if err != nil {
		if err != history.ErrBuildNotFound {
			log.Warn().Err(err).Msgf("Failed retrieving build %v from history", id)
		}
		return nil
	}

	return &build
}
