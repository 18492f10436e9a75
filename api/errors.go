package api

import (
	"fmt"
)

// separator frames templates and payloads in error messages
const separator = "\n---------------\n"

// ConfigurationError is raised when a target is configured with invalid values
type ConfigurationError struct {
	Target string
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("Invalid %v '%v'", e.Field, e.Value)
	if e.Target != "" {
		msg = fmt.Sprintf("Invalid %v '%v' for target %v", e.Field, e.Value, e.Target)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RenderError is raised when a template fails to produce a payload; it carries the expanded template
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("Failed to render template: %v%v%v%v", e.Err, separator, e.Template, separator)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ValidationError is raised when a rendered payload does not have the shape of its wire format
type ValidationError struct {
	Format  BodyFormat
	Payload string
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("Failed to validate %v payload: %v", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + separator + e.Payload + separator
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError is raised when a single http attempt fails; StatusCode is 0 if no response was received
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("status code is %v, expected 200", e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("status code is %v, expected 200: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request to %v failed: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// RetryExhaustedError is raised when all delivery attempts for a target failed
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("Retries exhausted, failed to publish notify request after %v attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
