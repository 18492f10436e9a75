package evaluation

import (
	"context"
	"testing"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/estafette/estafette-ci-notifier/clients/history"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func TestMeetsThreshold(t *testing.T) {

	t.Run("ReturnsTrueIffOutcomeIsEqualOrBetterForAllPairs", func(t *testing.T) {

		evaluationService := getEvaluationService()

		for i, outcome := range api.BuildOutcomes {
			for j, threshold := range api.BuildOutcomes {

				// act
				result := evaluationService.MeetsThreshold(outcome, threshold)

				assert.Equal(t, i <= j, result, "MeetsThreshold(%v, %v)", outcome, threshold)
			}
		}
	})
}

func TestGate(t *testing.T) {

	t.Run("ReturnsURLBlankForDisabledTargetWhateverTheOutcome", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", Threshold: api.OutcomeAborted}

		for _, outcome := range api.BuildOutcomes {
			helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", Outcome: outcome})

			// act
			fire, reason, err := evaluationService.Gate(helper, target)

			assert.Nil(t, err)
			assert.False(t, fire)
			assert.Equal(t, api.SkipReasonURLBlank, reason)
		}
	})

	t.Run("ReturnsIntermediateBuildIfURLContainsMarker", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", URL: "https://example.com/hook", Threshold: api.OutcomeAborted}
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", URL: "https://ci.example.com/job/my-app/label=linux$1/", Outcome: api.OutcomeSuccess})

		// act
		fire, reason, err := evaluationService.Gate(helper, target)

		assert.Nil(t, err)
		assert.False(t, fire)
		assert.Equal(t, api.SkipReasonIntermediateBuild, reason)
	})

	t.Run("ReturnsThresholdNotMetIfOutcomeIsWorseThanThreshold", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", URL: "https://example.com/hook", Threshold: api.OutcomeSuccess}
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeFailure})

		// act
		fire, reason, err := evaluationService.Gate(helper, target)

		assert.Nil(t, err)
		assert.False(t, fire)
		assert.Equal(t, api.SkipReasonThresholdNotMet, reason)
	})

	t.Run("FiresIfOutcomeIsBetterThanThreshold", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", URL: "https://example.com/hook", Threshold: api.OutcomeFailure}
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeUnstable})

		// act
		fire, reason, err := evaluationService.Gate(helper, target)

		assert.Nil(t, err)
		assert.True(t, fire)
		assert.Equal(t, api.SkipReason(""), reason)
	})

	t.Run("FiresIfWhenExpressionIsTrue", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", URL: "https://example.com/hook", Threshold: api.OutcomeAborted, When: "status == 'warning' && branch == '${RELEASE_BRANCH}'"}
		build := api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeFailure, Environment: map[string]string{"GIT_BRANCH": "main", "RELEASE_BRANCH": "main"}}
		helper := evaluationService.GetHelper(context.Background(), build)

		// act
		fire, _, err := evaluationService.Gate(helper, target)

		assert.Nil(t, err)
		assert.True(t, fire)
	})

	t.Run("ReturnsWhenFalseIfWhenExpressionIsFalse", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", URL: "https://example.com/hook", Threshold: api.OutcomeAborted, When: "recovering"}
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeFailure})

		// act
		fire, reason, err := evaluationService.Gate(helper, target)

		assert.Nil(t, err)
		assert.False(t, fire)
		assert.Equal(t, api.SkipReasonWhenFalse, reason)
	})

	t.Run("ReturnsErrorIfWhenExpressionIsMalformed", func(t *testing.T) {

		evaluationService := getEvaluationService()
		target := api.NotifyTarget{Name: "victorops", URL: "https://example.com/hook", Threshold: api.OutcomeAborted, When: "status == 'warning"}
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeFailure})

		// act
		fire, reason, err := evaluationService.Gate(helper, target)

		assert.NotNil(t, err)
		assert.False(t, fire)
		assert.Equal(t, api.SkipReasonWhenFalse, reason)
	})
}

func TestGetHelper(t *testing.T) {

	t.Run("LooksUpPreviousBuildByID", func(t *testing.T) {

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		historyClient := history.NewMockClient(ctrl)
		historyClient.EXPECT().GetBuild(gomock.Any(), "my-app/1").Return(api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeFailure}, nil).Times(1)

		evaluationService, _ := NewService(context.Background(), historyClient)

		// act
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/2", PreviousID: "my-app/1", Outcome: api.OutcomeSuccess})

		assert.NotNil(t, helper.Previous())
		assert.True(t, helper.IsRecovering())
	})

	t.Run("DoesNotLookUpPreviousBuildForFirstBuild", func(t *testing.T) {

		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		historyClient := history.NewMockClient(ctrl)
		historyClient.EXPECT().GetBuild(gomock.Any(), gomock.Any()).Times(0)

		evaluationService, _ := NewService(context.Background(), historyClient)

		// act
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", Outcome: api.OutcomeSuccess})

		assert.Nil(t, helper.Previous())
	})
}

func TestEvaluate(t *testing.T) {

	t.Run("ReturnsFalseIfInputIsEmpty", func(t *testing.T) {

		evaluationService := getEvaluationService()

		// act
		result, err := evaluationService.Evaluate("name", "", make(map[string]interface{}, 0))

		assert.NotNil(t, err)
		assert.False(t, result)
	})

	t.Run("ReturnsTrueIfInputEvaluatesToTrueWithParameters", func(t *testing.T) {

		evaluationService := getEvaluationService()
		parameters := make(map[string]interface{}, 2)
		parameters["result"] = "FAILURE"
		parameters["project"] = "my-app"

		// act
		result, err := evaluationService.Evaluate("name", "result == 'FAILURE' && project == 'my-app'", parameters)

		assert.Nil(t, err)
		assert.True(t, result)
	})

	t.Run("ReturnsErrorIfResultIsNotBoolean", func(t *testing.T) {

		evaluationService := getEvaluationService()

		// act
		result, err := evaluationService.Evaluate("name", "3 + 2", make(map[string]interface{}, 0))

		assert.NotNil(t, err)
		assert.False(t, result)
	})
}

func TestGetParameters(t *testing.T) {

	t.Run("ReturnsMapWithStatusResultAndThreshold", func(t *testing.T) {

		evaluationService := getEvaluationService()
		helper := evaluationService.GetHelper(context.Background(), api.BuildRecord{ID: "my-app/1", ProjectName: "my-app", Outcome: api.OutcomeUnstable})

		// act
		parameters := evaluationService.GetParameters(helper, api.NotifyTarget{Name: "webhook", Threshold: api.OutcomeFailure})

		assert.Equal(t, "success", parameters["status"])
		assert.Equal(t, "UNSTABLE", parameters["result"])
		assert.Equal(t, "FAILURE", parameters["threshold"])
		assert.Equal(t, "my-app", parameters["project"])
		assert.Equal(t, false, parameters["recovering"])
	})
}

func getEvaluationService() Service {
	historyClient, _ := history.NewMemoryClient(10)
	evaluationService, _ := NewService(context.Background(), historyClient)

	return evaluationService
}
