package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/templates"
	crypt "github.com/estafette/estafette-ci-crypt"
	foundation "github.com/estafette/estafette-foundation"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v2"
)

// EnvOverridePrefix prefixes the per-target override envvars, e.g. NOTIFY_VICTOROPS_URL
const EnvOverridePrefix = "NOTIFY_"

// Config is the notifier configuration as read from file
type Config struct {
	Pipeline string         `yaml:"pipeline,omitempty"`
	Parallel bool           `yaml:"parallel,omitempty"`
	Host     HostConfig     `yaml:"host,omitempty"`
	History  HistoryConfig  `yaml:"history,omitempty"`
	Targets  []TargetConfig `yaml:"targets,omitempty"`
}

// HostConfig describes the system sending the notifications
type HostConfig struct {
	Name    string `yaml:"name,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// HistoryConfig selects the build history store
type HistoryConfig struct {
	DSN       string `yaml:"dsn,omitempty"`
	MaxBuilds int    `yaml:"maxBuilds,omitempty"`
}

// TargetConfig is the raw configuration of a single notification destination
type TargetConfig struct {
	Name          string `yaml:"name,omitempty"`
	Kind          string `yaml:"kind,omitempty"`
	URL           string `yaml:"url,omitempty"`
	Threshold     string `yaml:"threshold,omitempty"`
	Template      string `yaml:"template,omitempty"`
	TemplateFile  string `yaml:"templateFile,omitempty"`
	Authorization string `yaml:"authorization,omitempty"`
	Format        string `yaml:"format,omitempty"`
	Method        string `yaml:"method,omitempty"`
	When          string `yaml:"when,omitempty"`
}

// GetName returns the configured name, defaulting to the kind
func (tc TargetConfig) GetName() string {
	if strings.TrimSpace(tc.Name) != "" {
		return strings.TrimSpace(tc.Name)
	}
	if strings.TrimSpace(tc.Kind) != "" {
		return strings.ToLower(strings.TrimSpace(tc.Kind))
	}
	return string(api.TargetKindWebhook)
}

// ReadConfigFromFile reads and unmarshals the yaml config file; it also returns the raw bytes for secret collection
func ReadConfigFromFile(configPath string) (config Config, data []byte, err error) {

	log.Debug().Msgf("Reading %v file...", configPath)

	data, err = os.ReadFile(configPath)
	if err != nil {
		return config, data, err
	}

	config, err = UnmarshalConfig(data)
	if err != nil {
		return config, data, err
	}

	log.Debug().Msgf("Finished reading %v file successfully", configPath)

	return config, data, nil
}

// UnmarshalConfig unmarshals yaml into a Config
func UnmarshalConfig(data []byte) (config Config, err error) {
	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("Unmarshalling config failed: %w", err)
	}
	return config, nil
}

// ApplyEnvOverrides replaces url, threshold, authorization and template of each target with NOTIFY_<NAME>_<FIELD> envvars when set
func (c *Config) ApplyEnvOverrides(lookupEnv func(string) (string, bool)) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		prefix := GetEnvOverridePrefix(t.GetName())

		if value, ok := lookupEnv(prefix + "URL"); ok {
			log.Debug().Msgf("Overriding url of target %v from %vURL", t.GetName(), prefix)
			t.URL = value
		}
		if value, ok := lookupEnv(prefix + "THRESHOLD"); ok {
			t.Threshold = value
		}
		if value, ok := lookupEnv(prefix + "AUTHORIZATION"); ok {
			t.Authorization = value
		}
		if value, ok := lookupEnv(prefix + "TEMPLATE"); ok {
			t.Template = value
		}
	}

	if value, ok := lookupEnv(EnvOverridePrefix + "PARALLEL"); ok {
		if parallel, err := strconv.ParseBool(value); err == nil {
			c.Parallel = parallel
		}
	}
}

// GetEnvOverridePrefix returns the envvar prefix for a target name, e.g. NOTIFY_STATUS_PAGE_
func GetEnvOverridePrefix(name string) string {
	return EnvOverridePrefix + foundation.ToUpperSnakeCase(strings.ReplaceAll(name, "-", "_")) + "_"
}

// GetNotifyTargets decrypts secret envelopes and validates every target; all configuration errors are returned together
func (c *Config) GetNotifyTargets(secretHelper crypt.SecretHelper) (targets []api.NotifyTarget, err error) {

	targets = make([]api.NotifyTarget, 0, len(c.Targets))
	errs := make([]error, 0)
	names := map[string]bool{}

	for _, tc := range c.Targets {

		url, err := c.decrypt(secretHelper, tc.URL)
		if err != nil {
			errs = append(errs, &api.ConfigurationError{Target: tc.GetName(), Field: "url", Value: "***", Reason: "Decrypting secret failed", Err: err})
			continue
		}
		authorization, err := c.decrypt(secretHelper, tc.Authorization)
		if err != nil {
			errs = append(errs, &api.ConfigurationError{Target: tc.GetName(), Field: "authorization", Value: "***", Reason: "Decrypting secret failed", Err: err})
			continue
		}

		template := tc.Template
		if strings.TrimSpace(template) == "" && strings.TrimSpace(tc.TemplateFile) != "" {
			data, err := os.ReadFile(tc.TemplateFile)
			if err != nil {
				errs = append(errs, &api.ConfigurationError{Target: tc.GetName(), Field: "templateFile", Value: tc.TemplateFile, Err: err})
				continue
			}
			template = string(data)
		}

		target, err := api.NewNotifyTarget(api.TargetOptions{
			Name:          tc.Name,
			Kind:          api.TargetKind(tc.Kind),
			URL:           url,
			Threshold:     tc.Threshold,
			Template:      template,
			Authorization: authorization,
			BodyFormat:    api.BodyFormat(tc.Format),
			Method:        tc.Method,
			When:          tc.When,
		}, templates.ForKind)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if names[target.Name] {
			errs = append(errs, &api.ConfigurationError{Target: target.Name, Field: "name", Value: target.Name, Reason: "Target names should be unique"})
			continue
		}
		names[target.Name] = true

		targets = append(targets, target)
	}

	if len(errs) > 0 {
		return targets, errors.Join(errs...)
	}

	return targets, nil
}

func (c *Config) decrypt(secretHelper crypt.SecretHelper, value string) (string, error) {
	if secretHelper == nil || value == "" {
		return value, nil
	}
	return secretHelper.DecryptAllEnvelopes(value, c.Pipeline)
}
