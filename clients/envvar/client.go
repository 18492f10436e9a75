package envvar

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	contracts "github.com/estafette/estafette-ci-contracts"
	foundation "github.com/estafette/estafette-foundation"
	"github.com/rs/zerolog/log"
)

// Client reads the ESTAFETTE_ environment variables an estafette extension is started with
//go:generate mockgen -package=envvar -destination ./mock.go -source=client.go
type Client interface {
	CollectEstafetteEnvvars() map[string]string
	GetEstafetteEnv(string) string
	SetEstafetteEnv(string, string) error
	UnsetEstafetteEnvvars()
	GetEstafetteEnvvarName(string) string
	GetExtensionParameter(string) string
	GetPipelineName() string
	GetBuildEvent() (api.BuildEvent, error)
}

// NewClient returns a new envvar.Client; prefix replaces ESTAFETTE_ in every envvar name
func NewClient(prefix string) (Client, error) {
	if prefix == "" {
		prefix = "ESTAFETTE_"
	}

	return &client{
		prefix: prefix,
	}, nil
}

type client struct {
	prefix string
}

func (c *client) CollectEstafetteEnvvars() (envvars map[string]string) {

	// return all envvars starting with ESTAFETTE_
	envvars = map[string]string{}

	for _, e := range os.Environ() {
		kvPair := strings.SplitN(e, "=", 2)

		if len(kvPair) == 2 {
			envvarName := kvPair[0]
			envvarValue := kvPair[1]

			if strings.HasPrefix(envvarName, c.prefix) {
				envvars[envvarName] = envvarValue
			}
		}
	}

	return
}

func (c *client) GetEstafetteEnv(key string) string {
	return os.Getenv(c.GetEstafetteEnvvarName(key))
}

func (c *client) SetEstafetteEnv(key, value string) error {
	return os.Setenv(c.GetEstafetteEnvvarName(key), value)
}

// only to be used from unit tests
func (c *client) UnsetEstafetteEnvvars() {
	for key := range c.CollectEstafetteEnvvars() {
		_ = os.Unsetenv(key)
	}
}

func (c *client) GetEstafetteEnvvarName(key string) string {
	return strings.Replace(key, "ESTAFETTE_", c.prefix, -1)
}

// GetExtensionParameter returns a custom property of the extension stage, e.g. previousBuildId from ESTAFETTE_EXTENSION_PREVIOUS_BUILD_ID
func (c *client) GetExtensionParameter(name string) string {
	return c.GetEstafetteEnv("ESTAFETTE_EXTENSION_" + foundation.ToUpperSnakeCase(name))
}

func (c *client) GetPipelineName() string {
	source := c.GetEstafetteEnv("ESTAFETTE_GIT_SOURCE")
	owner := c.GetEstafetteEnv("ESTAFETTE_GIT_OWNER")
	name := c.GetEstafetteEnv("ESTAFETTE_GIT_NAME")

	if source == "" || owner == "" || name == "" {
		return ""
	}

	return fmt.Sprintf("%v/%v/%v", source, owner, name)
}

func (c *client) GetBuildEvent() (event api.BuildEvent, err error) {

	build := api.BuildRecord{
		ID:          c.GetEstafetteEnv("ESTAFETTE_BUILD_ID"),
		PreviousID:  c.GetExtensionParameter("previousBuildId"),
		ProjectName: c.GetEstafetteEnv("ESTAFETTE_GIT_FULLNAME"),
		DisplayName: c.GetEstafetteEnv("ESTAFETTE_BUILD_VERSION"),
		Outcome:     api.OutcomeFromLogStatus(contracts.LogStatus(c.GetEstafetteEnv("ESTAFETTE_BUILD_STATUS"))),
		Environment: c.getBuildEnvironment(),
	}

	// a release runs in the context of a release id instead of a build id
	if releaseID := c.GetEstafetteEnv("ESTAFETTE_RELEASE_ID"); releaseID != "" {
		build.ID = fmt.Sprintf("release/%v", releaseID)
		if name := c.GetEstafetteEnv("ESTAFETTE_RELEASE_NAME"); name != "" && build.DisplayName != "" {
			build.DisplayName = fmt.Sprintf("%v to %v", build.DisplayName, name)
		}
	}

	if build.ProjectName == "" {
		build.ProjectName = c.GetEstafetteEnv("ESTAFETTE_GIT_NAME")
	}

	if counter := c.GetEstafetteEnv("ESTAFETTE_BUILD_CURRENT_COUNTER"); counter != "" {
		build.Number, err = strconv.Atoi(counter)
		if err != nil {
			log.Warn().Err(err).Msgf("Build counter %v is not a number", counter)
		}
	}

	if datetime := c.GetEstafetteEnv("ESTAFETTE_BUILD_DATETIME"); datetime != "" {
		build.Timestamp, err = time.Parse(time.RFC3339, datetime)
		if err != nil {
			log.Warn().Err(err).Msgf("Build datetime %v is not in RFC3339 format", datetime)
		}
		if !build.Timestamp.IsZero() {
			build.Duration = time.Since(build.Timestamp).Round(time.Second)
		}
	}

	if baseURL := c.GetEstafetteEnv("ESTAFETTE_CI_SERVER_BASE_URL"); baseURL != "" && c.GetPipelineName() != "" {
		build.URL = fmt.Sprintf("%v/pipelines/%v/builds/%v/logs", strings.TrimRight(baseURL, "/"), c.GetPipelineName(), c.GetEstafetteEnv("ESTAFETTE_GIT_REVISION"))
	}

	if build.ID == "" && build.Number > 0 {
		build.ID = fmt.Sprintf("%v/%v", c.GetPipelineName(), build.Number)
	}

	if err = build.Validate(); err != nil {
		return event, err
	}

	event = api.BuildEvent{Build: build}
	event.EnsureID()

	return event, nil
}

// getBuildEnvironment exposes all ESTAFETTE_ envvars plus the git fields under their generic names
func (c *client) getBuildEnvironment() map[string]string {

	environment := map[string]string{}
	for key, value := range c.CollectEstafetteEnvvars() {
		environment[strings.Replace(key, c.prefix, "ESTAFETTE_", 1)] = value
	}

	environment["GIT_BRANCH"] = c.GetEstafetteEnv("ESTAFETTE_GIT_BRANCH")
	environment["GIT_REVISION"] = c.GetEstafetteEnv("ESTAFETTE_GIT_REVISION")

	return environment
}
