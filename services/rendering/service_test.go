package rendering

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/history"
	"github.com/estafette/estafette-ci-notifier/services/evaluation"
	"github.com/estafette/estafette-ci-notifier/templates"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {

	t.Run("ReturnsTemplateWithoutExpressionsTrimmed", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), "\n  {\"x\": 1}  \n", getBindings(api.OutcomeSuccess))

		assert.Nil(t, err)
		assert.Equal(t, `{"x": 1}`, payload)
	})

	t.Run("ReturnsRenderErrorForBlankTemplate", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		_, err := renderingService.Render(context.Background(), "  \n ", getBindings(api.OutcomeSuccess))

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
	})

	t.Run("ResolvesBuildAndHelperPaths", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `{"result": "${build.result}", "number": ${build.number}, "success": ${helper.isSuccess}, "status": "${helper.status}"}`, getBindings(api.OutcomeFailure))

		assert.Nil(t, err)
		assert.Equal(t, `{"result": "FAILURE", "number": 12, "success": false, "status": "warning"}`, payload)
	})

	t.Run("ResolvesEnvironmentVariables", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `branch=${env.GIT_BRANCH}`, getBindings(api.OutcomeSuccess))

		assert.Nil(t, err)
		assert.Equal(t, "branch=main", payload)
	})

	t.Run("ReturnsRenderErrorWithTemplateForMissingEnvironmentVariable", func(t *testing.T) {

		renderingService := getRenderingService()
		template := `branch=${env.DOES_NOT_EXIST}`

		// act
		_, err := renderingService.Render(context.Background(), template, getBindings(api.OutcomeSuccess))

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
		assert.Equal(t, template, renderError.Template)
		assert.True(t, strings.Contains(err.Error(), template))
		assert.True(t, strings.Contains(err.Error(), "DOES_NOT_EXIST"))
	})

	t.Run("ReturnsRenderErrorForUnknownBinding", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		_, err := renderingService.Render(context.Background(), `${system.exit}`, getBindings(api.OutcomeSuccess))

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
	})

	t.Run("ReturnsRenderErrorForAbsentHelper", func(t *testing.T) {

		renderingService := getRenderingService()
		bindings := getBindings(api.OutcomeSuccess)
		bindings.Helper = nil

		// act
		_, err := renderingService.Render(context.Background(), `{"x": 1}`, bindings)

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
	})

	t.Run("ReturnsRenderErrorForUnterminatedExpression", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		_, err := renderingService.Render(context.Background(), `{"x": ${build.result}`, getBindings(api.OutcomeSuccess))

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
	})

	t.Run("ReturnsRenderErrorForNullResult", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		_, err := renderingService.Render(context.Background(), `x=${helper.isSuccess ? 'yes'}`, getBindings(api.OutcomeFailure))

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
	})

	t.Run("ReturnsRenderErrorForEmptyOutput", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		_, err := renderingService.Render(context.Background(), `${''}`, getBindings(api.OutcomeFailure))

		var renderError *api.RenderError
		assert.True(t, errors.As(err, &renderError))
	})

	t.Run("RendersEscapedDollarAsLiteral", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `price=\${build.result}`, getBindings(api.OutcomeFailure))

		assert.Nil(t, err)
		assert.Equal(t, "price=${build.result}", payload)
	})

	t.Run("RendersTernaryAndConcatenation", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `component[status]=${helper.isSuccess ? 'operational' : 'major_outage'}`, getBindings(api.OutcomeAborted))

		assert.Nil(t, err)
		assert.Equal(t, "component[status]=major_outage", payload)
	})

	t.Run("KeepsBracesInsideStringLiterals", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `${'{' + build.projectName + '}'}`, getBindings(api.OutcomeSuccess))

		assert.Nil(t, err)
		assert.Equal(t, "{my-app}", payload)
	})

	t.Run("RendersPreludeFunctions", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `{"reasons": ${json(reasons)}, "joined": ${json(join(reasons, ', '))}, "count": ${count(reasons)}, "project": ${json(upper(build.projectName))}, "lower": "${lower('ABC')}", "streak": ${isLastNFailed(helper, 1)}}`, getBindings(api.OutcomeFailure))

		assert.Nil(t, err)
		assert.Equal(t, `{"reasons": ["OutOfMemory","FlakyTest"], "joined": "OutOfMemory, FlakyTest", "count": 2, "project": "MY-APP", "lower": "abc", "streak": false}`, payload)
	})

	t.Run("EscapesQuotesWithJSONFunction", func(t *testing.T) {

		renderingService := getRenderingService()
		bindings := getBindings(api.OutcomeSuccess)
		bindings.Env["COMMIT_MESSAGE"] = `fix "quoted" bug`

		// act
		payload, err := renderingService.Render(context.Background(), `{"message": ${json(env.COMMIT_MESSAGE)}}`, bindings)

		assert.Nil(t, err)
		assert.Equal(t, `{"message": "fix \"quoted\" bug"}`, payload)
	})

	t.Run("ResolvesJenkinsAsAliasOfHost", func(t *testing.T) {

		renderingService := getRenderingService()

		// act
		payload, err := renderingService.Render(context.Background(), `${jenkins.url}|${host.name}`, getBindings(api.OutcomeSuccess))

		assert.Nil(t, err)
		assert.Equal(t, "https://ci.example.com|estafette-ci-notifier", payload)
	})

	t.Run("ReturnsSameResultForCachedTemplate", func(t *testing.T) {

		renderingService := getRenderingService()
		template := `{"result": "${build.result}"}`

		// act
		first, err1 := renderingService.Render(context.Background(), template, getBindings(api.OutcomeFailure))
		second, err2 := renderingService.Render(context.Background(), template, getBindings(api.OutcomeSuccess))

		assert.Nil(t, err1)
		assert.Nil(t, err2)
		assert.Equal(t, `{"result": "FAILURE"}`, first)
		assert.Equal(t, `{"result": "SUCCESS"}`, second)
	})

	t.Run("KeepsEveryRenderedTemplateInCache", func(t *testing.T) {

		renderingService := getRenderingService()
		victorops, _ := templates.ForKind(api.TargetKindVictorOps)
		statuspage, _ := templates.ForKind(api.TargetKindStatuspage)
		webhook := `{"result": "${build.result}"}`

		// act
		for _, template := range []string{victorops, statuspage, webhook} {
			_, err := renderingService.Render(context.Background(), template, getBindings(api.OutcomeFailure))
			assert.Nil(t, err)
		}

		cache := renderingService.(*service).cache
		cache.Wait()
		for _, template := range []string{victorops, statuspage, webhook} {
			_, found := cache.Get(template)
			assert.True(t, found)
		}
	})
}

func TestRenderBuiltInTemplates(t *testing.T) {

	t.Run("RendersValidJSONForVictorOpsTemplate", func(t *testing.T) {

		renderingService := getRenderingService()
		template, _ := templates.ForKind(api.TargetKindVictorOps)

		// act
		payload, err := renderingService.Render(context.Background(), template, getBindings(api.OutcomeFailure))

		assert.Nil(t, err)
		var body map[string]interface{}
		assert.Nil(t, json.Unmarshal([]byte(payload), &body))
		assert.Equal(t, "CRITICAL", body["message_type"])
		assert.Equal(t, "my-app", body["entity_id"])
		assert.Equal(t, "my-app #12 is warning", body["entity_display_name"])
		assert.Equal(t, "Build my-app #12 finished with result FAILURE after 90.5 seconds", body["state_message"])
	})

	t.Run("RendersFormPairForStatuspageTemplate", func(t *testing.T) {

		renderingService := getRenderingService()
		template, _ := templates.ForKind(api.TargetKindStatuspage)

		// act
		payload, err := renderingService.Render(context.Background(), template, getBindings(api.OutcomeUnstable))

		assert.Nil(t, err)
		assert.Equal(t, "component[status]=operational", payload)
	})

	t.Run("RendersValidJSONForWebhookTemplate", func(t *testing.T) {

		renderingService := getRenderingService()
		template, _ := templates.ForKind(api.TargetKindWebhook)

		// act
		payload, err := renderingService.Render(context.Background(), template, getBindings(api.OutcomeSuccess))

		assert.Nil(t, err)
		var body map[string]interface{}
		assert.Nil(t, json.Unmarshal([]byte(payload), &body))
		assert.Equal(t, "SUCCESS", body["result"])
		assert.Equal(t, float64(12), body["number"])
		assert.Equal(t, "2026-10-16T12:00:00Z", body["timestamp"])
	})
}

func TestRewriteAccessors(t *testing.T) {

	t.Run("WrapsDottedPathsInBrackets", func(t *testing.T) {

		// act
		result := rewriteAccessors(`helper.isSuccess && env.GIT_BRANCH == 'main.branch' && count(reasons) > 1.5`)

		assert.Equal(t, `[helper.isSuccess] && [env.GIT_BRANCH] == 'main.branch' && count(reasons) > 1.5`, result)
	})

	t.Run("KeepsAlreadyBracketedVariables", func(t *testing.T) {

		// act
		result := rewriteAccessors(`[env.MY-VAR] + build.id`)

		assert.Equal(t, `[env.MY-VAR] + [build.id]`, result)
	})
}

func getRenderingService() Service {
	renderingService, _ := NewService(context.Background(), 10)
	return renderingService
}

func getBindings(outcome api.BuildOutcome) Bindings {
	build := api.BuildRecord{
		ID:          "my-app/12",
		Number:      12,
		ProjectName: "my-app",
		URL:         "https://ci.example.com/job/my-app/12/",
		Outcome:     outcome,
		Duration:    90500 * time.Millisecond,
		Timestamp:   time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		Environment: map[string]string{"GIT_BRANCH": "main"},
	}
	historyClient, _ := history.NewMemoryClient(10)

	return Bindings{
		Host:    HostInfo{Name: "estafette-ci-notifier", URL: "https://ci.example.com", Version: "1.0.0"},
		Build:   build,
		Env:     build.Environment,
		Reasons: []api.FailureCause{{Name: "OutOfMemory"}, {Name: "FlakyTest"}},
		Helper:  evaluation.NewHelper(context.Background(), build, nil, historyClient),
	}
}
