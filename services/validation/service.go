package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/estafette/estafette-ci-notifier/api"
)

// Service checks whether a rendered payload has the shape of its wire format
//go:generate mockgen -package=validation -destination ./mock.go -source=service.go
type Service interface {
	Validate(payload api.RenderedPayload) error
}

// NewService returns a new validation.Service
func NewService() (Service, error) {
	return &service{}, nil
}

type service struct{}

func (s *service) Validate(payload api.RenderedPayload) error {
	switch payload.Format {
	case api.BodyFormatJSON:
		return validateJSON(payload.Raw)
	case api.BodyFormatForm:
		return validateForm(payload.Raw)
	}
	return &api.ValidationError{Format: payload.Format, Payload: payload.Raw, Reason: fmt.Sprintf("Unknown format '%v'", payload.Format)}
}

func validateJSON(raw string) error {

	isObject := strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}")
	isArray := strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]")
	if !isObject && !isArray {
		return &api.ValidationError{Format: api.BodyFormatJSON, Payload: raw, Reason: "JSON payload does not start with { or ["}
	}

	if !json.Valid([]byte(raw)) {
		var value interface{}
		err := json.Unmarshal([]byte(raw), &value)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return &api.ValidationError{Format: api.BodyFormatJSON, Payload: raw, Reason: "Payload is not well-formed JSON", Err: err}
	}

	return nil
}

func validateForm(raw string) error {
	if parts := api.SplitFormPair(raw); len(parts) != 2 {
		return &api.ValidationError{Format: api.BodyFormatForm, Payload: raw, Reason: fmt.Sprintf("Payload is not a valid form parameter in syntax 'a=b', was %v", raw)}
	}
	return nil
}
