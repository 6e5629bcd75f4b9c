package rewardsCalculatorQueue

import (
	"context"
	"fmt"
)

func (rcq *RewardsCalculatorQueue) Process() {
	for {
		select {
		case <-rcq.done:
			rcq.logger.Sugar().Infow("Closing rewards calculation queue")
			return
		case msg := <-rcq.queue:
			response := rcq.processMessage(msg)

			if msg.ResponseChan != nil {
				select {
				case msg.ResponseChan <- response:
				default:
					rcq.logger.Sugar().Infow("No receiver for response, dropping", "data", msg.Data)
				}
			} else if response.Error != nil {
				rcq.logger.Sugar().Errorw("Rewards calculation failed", "data", msg.Data, "error", response.Error)
			}
		}
	}
}

// processMessage never panics into Process; a panicking run becomes an error response so the
// next tick is still handled.
func (rcq *RewardsCalculatorQueue) processMessage(msg *RewardsCalculationMessage) (response *RewardsCalculatorResponse) {
	response = &RewardsCalculatorResponse{}
	defer func() {
		if r := recover(); r != nil {
			response.Error = fmt.Errorf("rewards calculation panicked: %v", r)
		}
	}()

	tickTime := msg.Data.TickTime
	if tickTime.IsZero() {
		tickTime = rcq.now()
	}
	ctx := context.Background()

	switch msg.Data.CalculationType {
	case RewardsCalculationType_Materialize:
		res, err := rcq.rewardsCalculator.MaterializeRewards(ctx, tickTime)
		response.Error = err
		response.Data = &RewardsCalculatorResponseData{Materialized: res}
	case RewardsCalculationType_AdminReport:
		res, err := rcq.rewardsCalculator.AdminRewards(ctx, tickTime)
		response.Error = err
		response.Data = &RewardsCalculatorResponseData{AdminReport: res}
	default:
		response.Error = unknownCalculationType(msg.Data.CalculationType)
	}
	return response
}
