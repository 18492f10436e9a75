package api

import (
	"testing"

	contracts "github.com/estafette/estafette-ci-contracts"
	"github.com/stretchr/testify/assert"
)

func TestIsBetterOrEqualTo(t *testing.T) {

	t.Run("ReturnsTrueIffOrdinalIsLowerOrEqualForAllPairs", func(t *testing.T) {

		for i, a := range BuildOutcomes {
			for j, b := range BuildOutcomes {

				// act
				result := a.IsBetterOrEqualTo(b)

				assert.Equal(t, i <= j, result, "%v.IsBetterOrEqualTo(%v)", a, b)
			}
		}
	})

	t.Run("ReturnsTrueForSuccessAgainstFailure", func(t *testing.T) {

		// act
		result := OutcomeSuccess.IsBetterOrEqualTo(OutcomeFailure)

		assert.True(t, result)
	})

	t.Run("ReturnsFalseForAbortedAgainstNotBuilt", func(t *testing.T) {

		// act
		result := OutcomeAborted.IsBetterOrEqualTo(OutcomeNotBuilt)

		assert.False(t, result)
	})

	t.Run("ReturnsFalseForUnknownOutcome", func(t *testing.T) {

		// act
		result := BuildOutcome("BROKEN").IsBetterOrEqualTo(OutcomeAborted)

		assert.False(t, result)
	})
}

func TestIsWorseThan(t *testing.T) {

	t.Run("ReturnsTrueIfOrdinalIsHigher", func(t *testing.T) {

		// act
		result := OutcomeAborted.IsWorseThan(OutcomeFailure)

		assert.True(t, result)
	})

	t.Run("ReturnsFalseForEqualOutcomes", func(t *testing.T) {

		// act
		result := OutcomeFailure.IsWorseThan(OutcomeFailure)

		assert.False(t, result)
	})
}

func TestParseBuildOutcome(t *testing.T) {

	t.Run("ReturnsOutcomeForCaseInsensitiveName", func(t *testing.T) {

		// act
		outcome, err := ParseBuildOutcome(" not_built ")

		assert.Nil(t, err)
		assert.Equal(t, OutcomeNotBuilt, outcome)
	})

	t.Run("ReturnsErrorForUnknownName", func(t *testing.T) {

		// act
		_, err := ParseBuildOutcome("BROKEN")

		assert.NotNil(t, err)
	})
}

func TestOutcomeFromLogStatus(t *testing.T) {

	t.Run("MapsSucceededToSuccess", func(t *testing.T) {

		// act
		outcome := OutcomeFromLogStatus(contracts.LogStatusSucceeded)

		assert.Equal(t, OutcomeSuccess, outcome)
	})

	t.Run("MapsFailedToFailure", func(t *testing.T) {

		// act
		outcome := OutcomeFromLogStatus(contracts.LogStatusFailed)

		assert.Equal(t, OutcomeFailure, outcome)
	})

	t.Run("MapsCanceledToAborted", func(t *testing.T) {

		// act
		outcome := OutcomeFromLogStatus(contracts.LogStatusCanceled)

		assert.Equal(t, OutcomeAborted, outcome)
	})

	t.Run("MapsLowercaseEnvvarValueToSuccess", func(t *testing.T) {

		// act
		outcome := OutcomeFromLogStatus(contracts.LogStatus("succeeded"))

		assert.Equal(t, OutcomeSuccess, outcome)
	})

	t.Run("MapsSkippedToNotBuilt", func(t *testing.T) {

		// act
		outcome := OutcomeFromLogStatus(contracts.LogStatusSkipped)

		assert.Equal(t, OutcomeNotBuilt, outcome)
	})
}
