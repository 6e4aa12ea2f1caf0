package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iacguard/iacguard/pkg/models"
)

func TestValidateTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to models.VulnStatus
	}{
		{models.VulnStatusOpen, models.VulnStatusInProgress},
		{models.VulnStatusOpen, models.VulnStatusIgnored},
		{models.VulnStatusInProgress, models.VulnStatusIgnored},
		{models.VulnStatusIgnored, models.VulnStatusOpen},
	}
	for _, c := range cases {
		assert.NoError(t, ValidateTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidateTransitionRejected(t *testing.T) {
	cases := []struct {
		from, to models.VulnStatus
	}{
		// manual resolution is never allowed
		{models.VulnStatusOpen, models.VulnStatusResolved},
		{models.VulnStatusInProgress, models.VulnStatusResolved},
		{models.VulnStatusIgnored, models.VulnStatusResolved},
		// resolved rows only come back via re-detection
		{models.VulnStatusResolved, models.VulnStatusOpen},
		{models.VulnStatusResolved, models.VulnStatusIgnored},
		// no backwards step and no self-transition
		{models.VulnStatusInProgress, models.VulnStatusOpen},
		{models.VulnStatusOpen, models.VulnStatusOpen},
		{models.VulnStatusIgnored, models.VulnStatusInProgress},
	}
	for _, c := range cases {
		err := ValidateTransition(c.from, c.to)
		require.Error(t, err, "%s -> %s", c.from, c.to)
		var invalid *InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestValidateTransitionUnknownTarget(t *testing.T) {
	err := ValidateTransition(models.VulnStatusOpen, models.VulnStatus("bogus"))
	assert.Error(t, err)
}

func TestApplyTransitionMutatesOnlyWhenValid(t *testing.T) {
	v := &models.Vulnerability{Status: models.VulnStatusOpen}
	require.NoError(t, ApplyTransition(v, models.VulnStatusInProgress))
	assert.Equal(t, models.VulnStatusInProgress, v.Status)

	err := ApplyTransition(v, models.VulnStatusResolved)
	assert.Error(t, err)
	assert.Equal(t, models.VulnStatusInProgress, v.Status)
}
