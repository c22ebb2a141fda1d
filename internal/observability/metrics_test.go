package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordPass(t *testing.T) {
	before := testutil.ToFloat64(matchPasses.WithLabelValues(OutcomeSkipped))
	RecordPass(OutcomeSkipped, time.Second)
	require.Equal(t, before+1, testutil.ToFloat64(matchPasses.WithLabelValues(OutcomeSkipped)))

	RecordPass(OutcomeMatched, 20*time.Millisecond)
	var m dto.Metric
	require.NoError(t, matchPassDuration.Write(&m))
	require.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestRecordPlanPersistedIgnoresZero(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	RecordPlanPersisted(ts)
	RecordPlanPersisted(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(planPersistGauge))
}

func TestRecordMissed(t *testing.T) {
	before := testutil.ToFloat64(missedSlots)
	RecordMissed(0)
	RecordMissed(2)
	require.Equal(t, before+2, testutil.ToFloat64(missedSlots))
}
