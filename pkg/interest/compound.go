package interest

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const MaxProjectionDays = 3650

type ProjectionPoint struct {
	Day     int             `json:"day"`
	Balance decimal.Decimal `json:"balance"`
}

type CompoundProjection struct {
	Principal     decimal.Decimal   `json:"principal"`
	ApyPercent    decimal.Decimal   `json:"apyPercent"`
	Days          int               `json:"days"`
	FinalBalance  decimal.Decimal   `json:"finalBalance"`
	TotalInterest decimal.Decimal   `json:"totalInterest"`
	Points        []ProjectionPoint `json:"points"`
}

// ProjectDailyCompound is the illustrative daily-compounding calculator shown in the UI.
// It never feeds the ledger.
func ProjectDailyCompound(principal decimal.Decimal, apyPercent decimal.Decimal, days int) (*CompoundProjection, error) {
	if principal.IsNegative() {
		return nil, fmt.Errorf("principal must not be negative")
	}
	if apyPercent.IsNegative() {
		return nil, fmt.Errorf("apy must not be negative")
	}
	if days < 0 || days > MaxProjectionDays {
		return nil, fmt.Errorf("days must be between 0 and %d", MaxProjectionDays)
	}

	dailyRate := apyPercent.DivRound(hundred.Mul(decimal.NewFromInt(365)), StoragePrecision)
	balance := principal
	points := make([]ProjectionPoint, 0, days+1)
	points = append(points, ProjectionPoint{Day: 0, Balance: balance})
	for day := 1; day <= days; day++ {
		balance = balance.Add(balance.Mul(dailyRate)).Round(StoragePrecision)
		points = append(points, ProjectionPoint{Day: day, Balance: balance})
	}

	return &CompoundProjection{
		Principal:     principal,
		ApyPercent:    apyPercent,
		Days:          days,
		FinalBalance:  balance,
		TotalInterest: balance.Sub(principal),
		Points:        points,
	}, nil
}
