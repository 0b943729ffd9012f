package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TasksDispatched.WithLabelValues("notify", "disabled").Inc()
	m.HTTPRequests.WithLabelValues("/healthz", "200").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksDispatched.WithLabelValues("notify", "disabled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/healthz", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2, "only collectors with samples are gathered")
}

func TestNew_NilRegisterer(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
