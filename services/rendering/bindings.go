package rendering

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/services/evaluation"
)

// HostInfo describes the system sending the notification; templates reach it as host or jenkins
type HostInfo struct {
	Name    string
	URL     string
	Version string
}

// Bindings is the fixed set of values a template can reference
type Bindings struct {
	Host    HostInfo
	Build   api.BuildRecord
	Env     map[string]string
	Reasons []api.FailureCause
	Helper  *evaluation.Helper
}

// parameters resolves variable paths against the bindings; it implements govaluate.Parameters
type parameters struct {
	values map[string]interface{}
	env    map[string]string
}

func newParameters(bindings Bindings) (*parameters, error) {

	if bindings.Helper == nil {
		return nil, errors.New("Binding 'helper' is absent")
	}
	if bindings.Env == nil {
		return nil, errors.New("Binding 'env' is absent")
	}
	if bindings.Reasons == nil {
		return nil, errors.New("Binding 'reasons' is absent")
	}

	build := bindings.Build
	timestamp := ""
	if !build.Timestamp.IsZero() {
		timestamp = build.Timestamp.UTC().Format(time.RFC3339)
	}

	buildValues := map[string]interface{}{
		"id":              build.ID,
		"previousId":      build.PreviousID,
		"number":          float64(build.Number),
		"result":          string(build.Outcome),
		"url":             build.URL,
		"displayName":     build.GetDisplayName(),
		"fullDisplayName": build.FullDisplayName(),
		"projectName":     build.ProjectName,
		"duration":        build.Duration.Seconds(),
		"timestamp":       timestamp,
	}

	helper := bindings.Helper
	helperValues := map[string]interface{}{
		"isSuccess":         helper.IsSuccess(),
		"isFailure":         helper.IsFailure(),
		"isPreviousSuccess": helper.IsPreviousSuccess(),
		"isPreviousFailure": helper.IsPreviousFailure(),
		"isRecovering":      helper.IsRecovering(),
		"isWarning":         helper.IsWarning(),
		"isRegressed":       helper.IsRegressed(),
		"status":            string(helper.Status()),
	}

	hostValues := map[string]interface{}{
		"name":    bindings.Host.Name,
		"url":     bindings.Host.URL,
		"version": bindings.Host.Version,
	}

	reasons := make([]string, 0, len(bindings.Reasons))
	for _, r := range bindings.Reasons {
		reasons = append(reasons, r.Name)
	}

	envValues := make(map[string]interface{}, len(bindings.Env))
	for k, v := range bindings.Env {
		envValues[k] = v
	}

	values := map[string]interface{}{
		"build":   buildValues,
		"env":     envValues,
		"reasons": reasons,
		"helper":  helper,
		"host":    hostValues,
		"jenkins": hostValues,
	}
	for prefix, group := range map[string]map[string]interface{}{"build": buildValues, "helper": helperValues, "host": hostValues, "jenkins": hostValues} {
		for k, v := range group {
			values[prefix+"."+k] = v
		}
	}

	return &parameters{
		values: values,
		env:    bindings.Env,
	}, nil
}

func (p *parameters) Get(name string) (interface{}, error) {

	if strings.HasPrefix(name, "env.") {
		key := strings.TrimPrefix(name, "env.")
		value, ok := p.env[key]
		if !ok {
			return nil, fmt.Errorf("Environment variable '%v' is not set", key)
		}
		return value, nil
	}

	value, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("No binding named '%v'", name)
	}

	return value, nil
}
