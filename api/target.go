package api

import (
	"net/http"
	"net/url"
	"strings"
)

// BodyFormat is the wire format of a notification payload
type BodyFormat string

const (
	BodyFormatJSON BodyFormat = "json"
	BodyFormatForm BodyFormat = "form"
)

// ContentType returns the value of the Content-Type header for the format
func (f BodyFormat) ContentType() string {
	if f == BodyFormatForm {
		return "application/x-www-form-urlencoded"
	}
	return "application/json; charset=utf-8"
}

// TargetKind selects the defaults of a destination
type TargetKind string

const (
	TargetKindWebhook    TargetKind = "webhook"
	TargetKindVictorOps  TargetKind = "victorops"
	TargetKindStatuspage TargetKind = "statuspage"
)

// TemplatePath returns the resource path of the kind's built-in template
func (k TargetKind) TemplatePath() string {
	switch k {
	case TargetKindVictorOps:
		return "victorops.json"
	case TargetKindStatuspage:
		return "statuspage.form"
	}
	return "webhook.json"
}

// DefaultMethod returns the http method the kind's endpoint expects
func (k TargetKind) DefaultMethod() string {
	if k == TargetKindStatuspage {
		return http.MethodPatch
	}
	return http.MethodPost
}

// DefaultBodyFormat returns the wire format the kind's endpoint expects
func (k TargetKind) DefaultBodyFormat() BodyFormat {
	if k == TargetKindStatuspage {
		return BodyFormatForm
	}
	return BodyFormatJSON
}

// TargetOptions holds the raw, operator supplied configuration of a destination
type TargetOptions struct {
	Name          string
	Kind          TargetKind
	URL           string
	Threshold     string
	Template      string
	Authorization string
	BodyFormat    BodyFormat
	Method        string
	When          string
}

// NotifyTarget is one validated, immutable notification destination
type NotifyTarget struct {
	Name          string
	Kind          TargetKind
	URL           string
	Threshold     BuildOutcome
	Template      string
	Authorization string
	BodyFormat    BodyFormat
	Method        string
	When          string
}

// NewNotifyTarget trims and defaults the options and validates them; defaultTemplate is used when no template is configured
func NewNotifyTarget(options TargetOptions, defaultTemplate func(TargetKind) (string, error)) (target NotifyTarget, err error) {

	kind := TargetKind(strings.ToLower(strings.TrimSpace(string(options.Kind))))
	switch kind {
	case TargetKindWebhook, TargetKindVictorOps, TargetKindStatuspage:
	case "":
		kind = TargetKindWebhook
	default:
		return target, &ConfigurationError{Target: options.Name, Field: "kind", Value: string(options.Kind), Reason: "Kind should be one of webhook, victorops or statuspage"}
	}

	target = NotifyTarget{
		Name:          strings.TrimSpace(options.Name),
		Kind:          kind,
		URL:           strings.TrimSpace(options.URL),
		Threshold:     OutcomeSuccess,
		Authorization: strings.TrimSpace(options.Authorization),
		BodyFormat:    kind.DefaultBodyFormat(),
		Method:        kind.DefaultMethod(),
		When:          strings.TrimSpace(options.When),
	}
	if target.Name == "" {
		target.Name = string(kind)
	}

	if err = ValidateTargetURL(target.URL); err != nil {
		if ce, ok := err.(*ConfigurationError); ok {
			ce.Target = target.Name
		}
		return target, err
	}

	if strings.TrimSpace(options.Threshold) != "" {
		target.Threshold, err = ParseBuildOutcome(options.Threshold)
		if err != nil {
			return target, &ConfigurationError{Target: target.Name, Field: "threshold", Value: options.Threshold, Reason: err.Error()}
		}
	}

	switch BodyFormat(strings.ToLower(strings.TrimSpace(string(options.BodyFormat)))) {
	case "":
	case BodyFormatJSON:
		target.BodyFormat = BodyFormatJSON
	case BodyFormatForm:
		target.BodyFormat = BodyFormatForm
	default:
		return target, &ConfigurationError{Target: target.Name, Field: "format", Value: string(options.BodyFormat), Reason: "Format should be either json or form"}
	}

	switch strings.ToUpper(strings.TrimSpace(options.Method)) {
	case "":
	case http.MethodPost:
		target.Method = http.MethodPost
	case http.MethodPatch:
		target.Method = http.MethodPatch
	default:
		return target, &ConfigurationError{Target: target.Name, Field: "method", Value: options.Method, Reason: "Method should be either POST or PATCH"}
	}

	target.Template = strings.TrimSpace(options.Template)
	if target.Template == "" && defaultTemplate != nil {
		template, err := defaultTemplate(kind)
		if err != nil {
			return target, &ConfigurationError{Target: target.Name, Field: "template", Value: kind.TemplatePath(), Reason: err.Error()}
		}
		target.Template = strings.TrimSpace(template)
	}

	return target, nil
}

// IsEnabled returns false for a target without url; such a target never renders nor sends anything
func (t NotifyTarget) IsEnabled() bool {
	return t.URL != ""
}

// HasAuthorization returns true if an Authorization header has to be sent
func (t NotifyTarget) HasAuthorization() bool {
	return t.Authorization != ""
}

// ValidateTargetURL accepts a blank url (disabled target) or an absolute http(s) url with a host
func ValidateTargetURL(value string) error {

	if strings.TrimSpace(value) == "" {
		return nil
	}

	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return &ConfigurationError{Field: "url", Value: value, Reason: "Invalid URL provided", Err: err}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigurationError{Field: "url", Value: value, Reason: "URL should start with 'http://' or 'https://'"}
	}

	if strings.TrimSpace(u.Hostname()) == "" {
		return &ConfigurationError{Field: "url", Value: value, Reason: "URL should contain a host"}
	}

	return nil
}
