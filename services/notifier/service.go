package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/failurecause"
	"github.com/estafette/estafette-ci-notifier/clients/history"
	"github.com/estafette/estafette-ci-notifier/clients/obfuscation"
	"github.com/estafette/estafette-ci-notifier/services/evaluation"
	"github.com/estafette/estafette-ci-notifier/services/rendering"
	"github.com/estafette/estafette-ci-notifier/services/retry"
	"github.com/estafette/estafette-ci-notifier/services/validation"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service notifies all configured targets about a finished build
//go:generate mockgen -package=notifier -destination ./mock.go -source=service.go
type Service interface {
	Notify(ctx context.Context, event api.BuildEvent) (results []api.TargetResult, err error)
	Targets() []api.NotifyTarget
}

// NewService returns a new notifier.Service
func NewService(ctx context.Context, targets []api.NotifyTarget, hostInfo rendering.HostInfo, parallel bool, historyClient history.Client, failurecauseClient failurecause.Client, obfuscationClient obfuscation.Client, evaluationService evaluation.Service, renderingService rendering.Service, validationService validation.Service, retryService retry.Service) (Service, error) {

	if evaluationService == nil || renderingService == nil || validationService == nil || retryService == nil {
		return nil, errors.New("Evaluation, rendering, validation and retry services are required")
	}

	if failurecauseClient == nil {
		var err error
		failurecauseClient, err = failurecause.NewClient(nil)
		if err != nil {
			return nil, err
		}
	}

	return &service{
		targets:            targets,
		hostInfo:           hostInfo,
		parallel:           parallel,
		historyClient:      historyClient,
		failurecauseClient: failurecauseClient,
		obfuscationClient:  obfuscationClient,
		evaluationService:  evaluationService,
		renderingService:   renderingService,
		validationService:  validationService,
		retryService:       retryService,
	}, nil
}

type service struct {
	targets            []api.NotifyTarget
	hostInfo           rendering.HostInfo
	parallel           bool
	historyClient      history.Client
	failurecauseClient failurecause.Client
	obfuscationClient  obfuscation.Client
	evaluationService  evaluation.Service
	renderingService   rendering.Service
	validationService  validation.Service
	retryService       retry.Service
}

func (s *service) Targets() []api.NotifyTarget {
	return s.targets
}

func (s *service) Notify(ctx context.Context, event api.BuildEvent) (results []api.TargetResult, err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "Notify")
	defer span.Finish()
	span.SetTag("event-id", event.ID)
	span.SetTag("build-id", event.Build.ID)

	if err = event.Build.Validate(); err != nil {
		span.SetTag("error", true)
		return nil, err
	}

	s.storeHistory(ctx, event)

	helper := s.evaluationService.GetHelper(ctx, event.Build)

	// the analyzer's action list is a read-only snapshot, collected once and only when a target fires
	reasons := sync.OnceValue(func() []api.FailureCause {
		return s.failurecauseClient.Collect(ctx, event)
	})

	results = make([]api.TargetResult, len(s.targets))

	if s.parallel && len(s.targets) > 1 {
		log.Info().Str("event", event.ID).Msgf("Notifying %v targets in parallel", len(s.targets))

		// failures are recorded per target, so no goroutine returns an error and none cancels the others
		var g errgroup.Group
		for i, t := range s.targets {
			targetIndex := i
			target := t

			g.Go(func() error {
				results[targetIndex] = s.notifyTarget(ctx, event, helper, reasons, target)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, target := range s.targets {
			results[i] = s.notifyTarget(ctx, event, helper, reasons, target)
		}
	}

	errs := make([]error, 0)
	for _, r := range results {
		if r.Status == api.TargetStatusFailed && r.Err != nil {
			errs = append(errs, fmt.Errorf("Notification of %v failed: %w", r.Target, r.Err))
		}
	}
	if len(errs) > 0 {
		span.SetTag("error", true)
		return results, errors.Join(errs...)
	}

	return results, nil
}

func (s *service) storeHistory(ctx context.Context, event api.BuildEvent) {
	if s.historyClient == nil {
		return
	}

	// predecessors first, so the current build is always the latest entry
	for _, record := range event.History {
		if record.ID == "" || record.ID == event.Build.ID {
			continue
		}
		if err := s.historyClient.StoreBuild(ctx, record); err != nil {
			log.Warn().Err(err).Msgf("Failed storing build %v in history", record.ID)
		}
	}

	if err := s.historyClient.StoreBuild(ctx, event.Build); err != nil {
		log.Warn().Err(err).Msgf("Failed storing build %v in history", event.Build.ID)
	}
}

func (s *service) notifyTarget(ctx context.Context, event api.BuildEvent, helper *evaluation.Helper, reasons func() []api.FailureCause, target api.NotifyTarget) (result api.TargetResult) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "NotifyTarget")
	defer span.Finish()
	span.SetTag("target", target.Name)

	start := time.Now()
	result = api.TargetResult{
		Target: target.Name,
		URL:    s.obfuscate(target.URL),
	}
	defer func() {
		result.Duration = time.Since(start)
		span.SetTag("status", string(result.Status))
	}()

	build := event.Build

	fire, reason, err := s.evaluationService.Gate(helper, target)
	if err != nil {
		log.Warn().Err(err).Msgf("Skipping %v notification as when expression '%v' failed to evaluate", target.Name, target.When)
		result.Status = api.TargetStatusSkipped
		result.SkipReason = reason
		return
	}
	if !fire {
		switch reason {
		case api.SkipReasonURLBlank:
			log.Info().Msgf("Skipping %v notification as configured url is empty", target.Name)
		case api.SkipReasonIntermediateBuild:
			log.Info().Msgf("Skipping %v notification as build %v is an intermediate build", target.Name, build.ID)
		case api.SkipReasonThresholdNotMet:
			log.Info().Msgf("Skipping %v notification as build result level %v is not matching notification level %v", target.Name, build.Outcome, target.Threshold)
		case api.SkipReasonWhenFalse:
			log.Info().Msgf("Skipping %v notification as when expression '%v' evaluated to false", target.Name, target.When)
		}
		result.Status = api.TargetStatusSkipped
		result.SkipReason = reason
		return
	}

	log.Info().Msgf("Notifying %v as build result level %v is matching notification level %v", target.Name, build.Outcome, target.Threshold)

	env := build.Environment
	if env == nil {
		env = map[string]string{}
	}

	raw, err := s.renderingService.Render(ctx, target.Template, rendering.Bindings{
		Host:    s.hostInfo,
		Build:   build,
		Env:     env,
		Reasons: reasons(),
		Helper:  helper,
	})
	if err != nil {
		return s.fail(result, err)
	}

	payload := api.RenderedPayload{Raw: raw, Format: target.BodyFormat}
	result.Payload = s.obfuscate(payload.Raw)

	if err = s.validationService.Validate(payload); err != nil {
		return s.fail(result, err)
	}

	log.Info().Msgf("Using URL %v", result.URL)
	log.Info().Msgf("Using payload %v", result.Payload)

	result.Attempts, err = s.retryService.DeliverWithRetry(ctx, target, payload)
	if err != nil {
		return s.fail(result, err)
	}

	log.Info().Msgf("Notification of %v was SUCCESSFUL", target.Name)
	result.Status = api.TargetStatusSucceeded

	return
}

func (s *service) fail(result api.TargetResult, err error) api.TargetResult {
	log.Error().Msgf("Notification of %v FAILED: %v", result.Target, s.obfuscate(err.Error()))
	result.Status = api.TargetStatusFailed
	result.Err = err
	return result
}

func (s *service) obfuscate(input string) string {
	if s.obfuscationClient == nil {
		return input
	}
	return s.obfuscationClient.Obfuscate(input)
}
