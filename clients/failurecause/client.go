package failurecause

import (
	"context"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/rs/zerolog/log"
)

// Cause is one diagnostic record found by an analyzer
type Cause interface {
	Name() (string, error)
}

// Action is a build-scoped record of an analyzer exposing the causes it found
type Action interface {
	DisplayName() string
	FoundFailureCauses() ([]Cause, error)
}

// Analyzer supplies the actions an external failure analyzer attached to a build
type Analyzer interface {
	Actions(ctx context.Context, event api.BuildEvent) ([]Action, error)
}

// Client collects the failure causes of a finished build
//go:generate mockgen -package=failurecause -destination ./mock.go -source=client.go
type Client interface {
	Collect(ctx context.Context, event api.BuildEvent) []api.FailureCause
}

// NewClient returns a new failurecause.Client; without analyzer no causes are ever collected
func NewClient(analyzer Analyzer) (Client, error) {
	if analyzer == nil {
		analyzer = NewNoopAnalyzer()
	}

	return &client{
		analyzer: analyzer,
	}, nil
}

type client struct {
	analyzer Analyzer
}

func (c *client) Collect(ctx context.Context, event api.BuildEvent) (causes []api.FailureCause) {

	causes = []api.FailureCause{}

	if event.Build.Outcome == api.OutcomeSuccess {
		return
	}

	log.Info().Msgf("Searching for build failure reasons of build %v", event.Build.ID)

	actions, err := c.analyzer.Actions(ctx, event)
	if err != nil {
		log.Warn().Err(err).Msgf("Failed retrieving failure cause actions for build %v", event.Build.ID)
		return
	}

	seen := map[string]bool{}
	for i, action := range actions {
		if action == nil {
			continue
		}
		log.Debug().Msgf("Found action %v of build %v", action.DisplayName(), event.Build.ID)

		found, err := action.FoundFailureCauses()
		if err != nil {
			log.Warn().Err(err).Msgf("Failed retrieving failure causes from action %v of build %v", i, event.Build.ID)
			continue
		}

		for j, cause := range found {
			if cause == nil {
				continue
			}

			name, err := cause.Name()
			if err != nil {
				log.Warn().Err(err).Msgf("Failed retrieving name of failure cause %v from action %v of build %v", j, i, event.Build.ID)
				continue
			}

			if seen[name] {
				continue
			}
			seen[name] = true
			log.Info().Msgf("Found failure cause %v of build %v", name, event.Build.ID)
			causes = append(causes, api.FailureCause{Name: name})
		}
	}

	return
}
