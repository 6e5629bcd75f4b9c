package rewardsCalculatorQueue

import (
	"context"
	"fmt"
	"time"

	"github.com/stakewell/stakedash/pkg/rewards"
	"go.uber.org/zap"
)

const queueSize = 100

// NewRewardsCalculatorQueue creates the queue every materialization goes through. One
// goroutine running Process is the only writer of reward postings.
func NewRewardsCalculatorQueue(rc *rewards.RewardsCalculator, logger *zap.Logger) *RewardsCalculatorQueue {
	return &RewardsCalculatorQueue{
		logger:            logger,
		rewardsCalculator: rc,
		queue:             make(chan *RewardsCalculationMessage, queueSize),
		done:              make(chan struct{}),
		clock:             time.Now,
	}
}

// TryEnqueue drops the message instead of blocking when the queue is full.
func (rcq *RewardsCalculatorQueue) TryEnqueue(payload *RewardsCalculationMessage) bool {
	select {
	case rcq.queue <- payload:
		return true
	default:
		rcq.logger.Sugar().Warnw("Rewards calculation queue is full, dropping message", "data", payload.Data)
		return false
	}
}

// EnqueueAndWait adds a new message to the queue and waits for a response or returns if the context is done
func (rcq *RewardsCalculatorQueue) EnqueueAndWait(ctx context.Context, data RewardsCalculationData) (*RewardsCalculatorResponseData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// buffered so Process never blocks on a caller that gave up
	responseChan := make(chan *RewardsCalculatorResponse, 1)

	payload := &RewardsCalculationMessage{
		Data:         data,
		ResponseChan: responseChan,
	}

	select {
	case rcq.queue <- payload:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case response := <-responseChan:
		return response.Data, response.Error
	case <-ctx.Done():
		rcq.logger.Sugar().Infow("Gave up waiting for rewards calculation response", "data", data)
		return nil, ctx.Err()
	}
}

func (rcq *RewardsCalculatorQueue) Close() {
	rcq.logger.Sugar().Infow("Closing rewards calculation queue")
	close(rcq.done)
}

func (rcq *RewardsCalculatorQueue) now() time.Time {
	return rcq.clock().UTC()
}

func unknownCalculationType(t RewardsCalculationType) error {
	return fmt.Errorf("unknown calculation type %s", t)
}
