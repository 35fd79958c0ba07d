package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
)

func TestObserveSolve(t *testing.T) {
	before := testutil.ToFloat64(SolvesTotal.WithLabelValues("TEST_mode", "Optimal"))

	ObserveSolve("TEST_mode", "Optimal", 10*time.Millisecond)
	ObserveSolve("TEST_mode", "Optimal", 20*time.Millisecond)

	after := testutil.ToFloat64(SolvesTotal.WithLabelValues("TEST_mode", "Optimal"))
	assert.Equal(t, after-before, 2.0)
	assert.Equal(t, testutil.CollectAndCount(SolveDuration), 1)
}

func TestIslandsGauge(t *testing.T) {
	Islands.Set(3)
	assert.Equal(t, testutil.ToFloat64(Islands), 3.0)
	assert.Equal(t, testutil.CollectAndCount(Islands), 1)
}

func TestPotentialErrorsUnlabelled(t *testing.T) {
	before := testutil.ToFloat64(PotentialErrors)
	PotentialErrors.Add(2)
	assert.Equal(t, testutil.ToFloat64(PotentialErrors)-before, 2.0)
	assert.Equal(t, testutil.CollectAndCount(PotentialErrors), 1)
}
