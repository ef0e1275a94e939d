package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordDelivery(t *testing.T) {
	before := testutil.ToFloat64(deliveries.WithLabelValues("minus_1_hour", OutcomeSent))
	RecordDelivery("minus_1_hour", OutcomeSent)
	RecordDelivery("minus_1_hour", OutcomeSent)
	require.Equal(t, before+2, testutil.ToFloat64(deliveries.WithLabelValues("minus_1_hour", OutcomeSent)))
}

func TestSetPending(t *testing.T) {
	SetPending(7)
	require.Equal(t, float64(7), testutil.ToFloat64(jobsPending))
	SetPending(0)
	require.Equal(t, float64(0), testutil.ToFloat64(jobsPending))
}

func TestRecordJobAndReconciliation(t *testing.T) {
	RecordScheduled("minus_1_day")
	RecordJob(JobFired)
	RecordJob(JobMisfired)
	RecordReconciliation("startup")
}

func TestHandler(t *testing.T) {
	RecordReconciliation("new_user")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "eventbot_reconciliations_total"))
}
