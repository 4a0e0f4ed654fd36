package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGet_Singleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestSetProbeResult(t *testing.T) {
	r := Get()

	r.SetProbeResult("eth0", 0, 3)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.UnreachableTargets.WithLabelValues("eth0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.InterfaceUp.WithLabelValues("eth0")))

	r.SetProbeResult("eth0", 2, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.UnreachableTargets.WithLabelValues("eth0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.InterfaceUp.WithLabelValues("eth0")),
		"one reachable target keeps the uplink up")

	r.SetProbeResult("eth0", 3, 3)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.InterfaceUp.WithLabelValues("eth0")))
}

func TestClearProbeResults(t *testing.T) {
	r := Get()

	before := testutil.CollectAndCount(r.UnreachableTargets, "uplinkd_unreachable_targets")

	r.SetProbeResult("eth1", 1, 3)
	assert.Equal(t, before+1, testutil.CollectAndCount(r.UnreachableTargets, "uplinkd_unreachable_targets"))

	r.ClearProbeResults("eth1")
	assert.Equal(t, before, testutil.CollectAndCount(r.UnreachableTargets, "uplinkd_unreachable_targets"),
		"series should be removed, not zeroed")
}
