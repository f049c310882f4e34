package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	Logins.WithLabelValues("success").Inc()
	UploadsRejected.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["recipebox_logins_total"])
	require.True(t, names["recipebox_uploads_rejected_total"])
	require.GreaterOrEqual(t, testutil.ToFloat64(Logins.WithLabelValues("success")), 1.0)
}
