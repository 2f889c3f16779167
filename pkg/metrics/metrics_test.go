package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ModerationVerdicts.WithLabelValues("approved"))
	ModerationVerdicts.WithLabelValues("approved").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ModerationVerdicts.WithLabelValues("approved")))

	before = testutil.ToFloat64(AutoReplyOutcomes.WithLabelValues("thread", "posted"))
	AutoReplyOutcomes.WithLabelValues("thread", "posted").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AutoReplyOutcomes.WithLabelValues("thread", "posted")))
}
