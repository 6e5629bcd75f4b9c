package rewardsCalculatorQueue

import (
	"time"

	"github.com/stakewell/stakedash/pkg/rewards"
	"go.uber.org/zap"
)

type RewardsCalculationType string

var (
	RewardsCalculationType_Materialize RewardsCalculationType = "materialize"
	RewardsCalculationType_AdminReport RewardsCalculationType = "adminReport"
)

type RewardsCalculationData struct {
	CalculationType RewardsCalculationType
	// TickTime is the materialization tick or the report's as-of time. Zero means now.
	TickTime time.Time
	Source   string
}

type RewardsCalculationMessage struct {
	Data         RewardsCalculationData
	ResponseChan chan *RewardsCalculatorResponse
}

type RewardsCalculatorResponseData struct {
	Materialized *rewards.MaterializeResult
	AdminReport  *rewards.AdminRewardsReport
}

type RewardsCalculatorResponse struct {
	Data  *RewardsCalculatorResponseData
	Error error
}

type RewardsCalculatorQueue struct {
	logger            *zap.Logger
	rewardsCalculator *rewards.RewardsCalculator
	queue             chan *RewardsCalculationMessage
	done              chan struct{}
	clock             func() time.Time
}
