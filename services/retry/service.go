package retry

import (
	"context"
	"errors"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/delivery"
	"github.com/estafette/estafette-ci-notifier/clients/obfuscation"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
)

// MaxAttempts is the fixed number of delivery attempts per target
const MaxAttempts = 5

// Service delivers a payload to a target, retrying immediately on failure until MaxAttempts is reached
//go:generate mockgen -package=retry -destination ./mock.go -source=service.go
type Service interface {
	DeliverWithRetry(ctx context.Context, target api.NotifyTarget, payload api.RenderedPayload) (outcomes []api.DeliveryOutcome, err error)
}

// NewService returns a new retry.Service
func NewService(ctx context.Context, deliveryClient delivery.Client, obfuscationClient obfuscation.Client) (Service, error) {
	if deliveryClient == nil {
		return nil, errors.New("Delivery client is required")
	}

	return &service{
		deliveryClient:    deliveryClient,
		obfuscationClient: obfuscationClient,
	}, nil
}

type service struct {
	deliveryClient    delivery.Client
	obfuscationClient obfuscation.Client
}

func (s *service) DeliverWithRetry(ctx context.Context, target api.NotifyTarget, payload api.RenderedPayload) (outcomes []api.DeliveryOutcome, err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "DeliverWithRetry")
	defer span.Finish()
	span.SetTag("target", target.Name)

	outcomes = make([]api.DeliveryOutcome, 0, MaxAttempts)

	// retry until successful or number of attempts is maxed out
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		statusCode, err := s.deliveryClient.Deliver(ctx, target, payload)

		outcomes = append(outcomes, api.DeliveryOutcome{
			Attempt:    attempt,
			Success:    err == nil,
			StatusCode: statusCode,
			Err:        err,
		})

		// if delivery is successful, we're done
		if err == nil {
			span.SetTag("attempts", attempt)
			return outcomes, nil
		}

		lastErr = err
		log.Warn().Str("target", target.Name).Msgf("%v. try: Failed to publish notify request: %v", attempt, s.obfuscate(err.Error()))
	}

	span.SetTag("attempts", MaxAttempts)
	span.SetTag("error", true)

	return outcomes, &api.RetryExhaustedError{Attempts: MaxAttempts, LastErr: lastErr}
}

func (s *service) obfuscate(input string) string {
	if s.obfuscationClient == nil {
		return input
	}
	return s.obfuscationClient.Obfuscate(input)
}
