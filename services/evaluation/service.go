package evaluation

import (
	"context"
	"errors"
	"os"

	"github.com/Knetic/govaluate"
	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/history"
	"github.com/rs/zerolog/log"
)

// Service decides whether a target fires for a finished build
//go:generate mockgen -package=evaluation -destination ./mock.go -source=service.go
type Service interface {
	GetHelper(ctx context.Context, build api.BuildRecord) *Helper
	MeetsThreshold(outcome, threshold api.BuildOutcome) bool
	Gate(helper *Helper, target api.NotifyTarget) (fire bool, reason api.SkipReason, err error)
	Evaluate(targetName, input string, parameters map[string]interface{}) (bool, error)
	GetParameters(helper *Helper, target api.NotifyTarget) map[string]interface{}
}

// NewService returns a new evaluation.Service
func NewService(ctx context.Context, historyClient history.Client) (Service, error) {
	return &service{
		historyClient: historyClient,
	}, nil
}

type service struct {
	historyClient history.Client
}

func (s *service) GetHelper(ctx context.Context, build api.BuildRecord) *Helper {

	var previous *api.BuildRecord
	if build.HasPrevious() && build.PreviousID != build.ID && s.historyClient != nil {
		p, err := s.historyClient.GetBuild(ctx, build.PreviousID)
		switch {
		case err == nil:
			previous = &p
		case errors.Is(err, history.ErrBuildNotFound):
			log.Debug().Msgf("Previous build %v of build %v is not in history, treating it as first build", build.PreviousID, build.ID)
		default:
			log.Warn().Err(err).Msgf("Failed retrieving previous build %v of build %v, treating it as first build", build.PreviousID, build.ID)
		}
	}

	return NewHelper(ctx, build, previous, s.historyClient)
}

// MeetsThreshold returns true if outcome is equal to or better than threshold
func (s *service) MeetsThreshold(outcome, threshold api.BuildOutcome) bool {
	return outcome.IsBetterOrEqualTo(threshold)
}

func (s *service) Gate(helper *Helper, target api.NotifyTarget) (fire bool, reason api.SkipReason, err error) {

	if !target.IsEnabled() {
		return false, api.SkipReasonURLBlank, nil
	}

	build := helper.Build()
	if build.IsIntermediate() {
		return false, api.SkipReasonIntermediateBuild, nil
	}

	if !s.MeetsThreshold(build.Outcome, target.Threshold) {
		return false, api.SkipReasonThresholdNotMet, nil
	}

	if target.When != "" {
		// replace build envvars in when clause
		input := os.Expand(target.When, func(key string) string {
			return build.Environment[key]
		})

		result, err := s.Evaluate(target.Name, input, s.GetParameters(helper, target))
		if err != nil {
			return false, api.SkipReasonWhenFalse, err
		}
		if !result {
			return false, api.SkipReasonWhenFalse, nil
		}
	}

	return true, "", nil
}

func (s *service) Evaluate(targetName, input string, parameters map[string]interface{}) (result bool, err error) {

	if input == "" {
		return false, errors.New("When expression is empty")
	}

	log.Debug().Msgf("[%v] Evaluating when expression \"%v\" with parameters \"%v\"", targetName, input, parameters)

	expression, err := govaluate.NewEvaluableExpression(input)
	if err != nil {
		return
	}

	r, err := expression.Evaluate(parameters)
	if err != nil {
		return false, err
	}

	log.Debug().Msgf("[%v] Result of when expression \"%v\" is \"%v\"", targetName, input, r)

	if result, ok := r.(bool); ok {
		return result, nil
	}

	return false, errors.New("Result of evaluating when expression is not of type boolean")
}

func (s *service) GetParameters(helper *Helper, target api.NotifyTarget) map[string]interface{} {

	build := helper.Build()

	parameters := make(map[string]interface{}, 8)
	parameters["status"] = string(helper.Status())
	parameters["result"] = string(build.Outcome)
	parameters["threshold"] = string(target.Threshold)
	parameters["recovering"] = helper.IsRecovering()
	parameters["warning"] = helper.IsWarning()
	parameters["project"] = build.ProjectName
	parameters["branch"] = build.Environment["GIT_BRANCH"]
	parameters["target"] = target.Name

	return parameters
}
