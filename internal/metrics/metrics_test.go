package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordQuickCheckCountsRejectionsOnly(t *testing.T) {
	before := testutil.ToFloat64(QuickCheckRejections)
	RecordQuickCheck(true)
	RecordQuickCheck(false)
	assert.Equal(t, before+1, testutil.ToFloat64(QuickCheckRejections))
}

func TestRecordSafetyCheck(t *testing.T) {
	before := testutil.ToFloat64(SafetyChecks.WithLabelValues("critical"))
	RecordSafetyCheck("critical", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(SafetyChecks.WithLabelValues("critical")))
}

func TestRecordPromptAndScreen(t *testing.T) {
	RecordPrompt("openai", "ok")
	RecordOutputScreen("unsafe")
	assert.GreaterOrEqual(t, testutil.ToFloat64(PromptsProcessed.WithLabelValues("openai", "ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(OutputScreens.WithLabelValues("unsafe")), 1.0)
}
