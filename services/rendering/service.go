package rendering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
)

// Service renders notification payloads from templates
//go:generate mockgen -package=rendering -destination ./mock.go -source=service.go
type Service interface {
	Render(ctx context.Context, template string, bindings Bindings) (string, error)
	Close()
}

// NewService returns a new rendering.Service caching up to maxCachedTemplates parsed templates
func NewService(ctx context.Context, maxCachedTemplates int64) (Service, error) {

	if maxCachedTemplates <= 0 {
		maxCachedTemplates = 100
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []segment]{
		NumCounters: maxCachedTemplates * 10,
		MaxCost:     maxCachedTemplates,
		BufferItems: 64,
		// cost counts templates, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create template cache: %w", err)
	}

	return &service{
		cache: cache,
	}, nil
}

type service struct {
	cache *ristretto.Cache[string, []segment]
}

func (s *service) Render(ctx context.Context, template string, bindings Bindings) (payload string, err error) {

	span, _ := opentracing.StartSpanFromContext(ctx, "RenderTemplate")
	defer span.Finish()

	if strings.TrimSpace(template) == "" {
		return "", &api.RenderError{Template: template, Err: errors.New("Template is empty")}
	}

	segments, err := s.getSegments(template)
	if err != nil {
		return "", &api.RenderError{Template: template, Err: err}
	}

	params, err := newParameters(bindings)
	if err != nil {
		return "", &api.RenderError{Template: template, Err: err}
	}

	var b strings.Builder
	for _, seg := range segments {
		if seg.expression == nil {
			b.WriteString(seg.text)
			continue
		}

		value, err := seg.expression.Eval(params)
		if err != nil {
			return "", &api.RenderError{Template: template, Err: fmt.Errorf("Failed evaluating expression '%v': %w", seg.source, err)}
		}

		formatted, err := formatValue(value)
		if err != nil {
			return "", &api.RenderError{Template: template, Err: fmt.Errorf("Failed formatting result of expression '%v': %w", seg.source, err)}
		}

		b.WriteString(formatted)
	}

	payload = strings.TrimSpace(b.String())
	if payload == "" {
		return "", &api.RenderError{Template: template, Err: errors.New("Template rendered an empty payload")}
	}

	return payload, nil
}

func (s *service) getSegments(template string) ([]segment, error) {

	if segments, found := s.cache.Get(template); found {
		return segments, nil
	}

	segments, err := parse(template)
	if err != nil {
		return nil, err
	}

	s.cache.Set(template, segments, 1)
	log.Debug().Msgf("Parsed template into %v segments", len(segments))

	return segments, nil
}

func (s *service) Close() {
	s.cache.Close()
}

func formatValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", errors.New("Expression evaluated to null")
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}

	bytes, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
