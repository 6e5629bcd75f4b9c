package dogstatsd

import (
	"testing"

	"github.com/stakewell/stakedash/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

func Test_formatTags(t *testing.T) {
	tags := formatTags([]metricsTypes.MetricsLabel{
		{Name: "route", Value: "/v1/me/portfolio"},
		{Name: "status", Value: "200"},
	})
	assert.Equal(t, []string{"route:/v1/me/portfolio", "status:200"}, tags)
	assert.Equal(t, 0, len(formatTags(nil)))
}
