package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(TasksFinished.WithLabelValues("COMPLETED"))
	TasksFinished.WithLabelValues("COMPLETED").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TasksFinished.WithLabelValues("COMPLETED")))

	before = testutil.ToFloat64(ExtensionCalls.WithLabelValues(OutcomeTimeout))
	ExtensionCalls.WithLabelValues(OutcomeTimeout).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ExtensionCalls.WithLabelValues(OutcomeTimeout)))
}

func TestGauges(t *testing.T) {
	PendingRequests.Set(0)
	PendingRequests.Inc()
	PendingRequests.Inc()
	PendingRequests.Dec()
	assert.Equal(t, float64(1), testutil.ToFloat64(PendingRequests))
	PendingRequests.Set(0)
}
