package core

import (
	"fmt"

	sm "capm/service/models"
)

const (
	RiskHigh   = "High Risk"
	RiskLow    = "Low Risk"
	RiskMarket = "Market Risk"
)

// AssessRisk reads beta as volatility relative to the market. Beta is compared at two decimals,
// the precision it is reported with, so a beta shown as 1.00 is market risk.
func AssessRisk(symbol string, beta float64) sm.RiskAssessment {
	rounded := sm.Round2(beta)
	relative := sm.Round2(distanceFromMarket(rounded) * 100)

	switch {
	case rounded > 1:
		return sm.RiskAssessment{
			Level:              RiskHigh,
			RelativeVolatility: relative,
			Summary:            fmt.Sprintf("%s is %.1f%% more volatile than the market", symbol, relative),
			Interpretation:     "This stock tends to amplify market movements, higher potential returns but also higher risk.",
		}
	case rounded < 1:
		return sm.RiskAssessment{
			Level:              RiskLow,
			RelativeVolatility: relative,
			Summary:            fmt.Sprintf("%s is %.1f%% less volatile than the market", symbol, relative),
			Interpretation:     "This stock is more stable than the market, lower risk but potentially lower returns.",
		}
	default:
		return sm.RiskAssessment{
			Level:          RiskMarket,
			Summary:        fmt.Sprintf("%s moves exactly with the market", symbol),
			Interpretation: "This stock follows market movements closely.",
		}
	}
}

func distanceFromMarket(beta float64) float64 {
	if beta > 1 {
		return beta - 1
	}
	return 1 - beta
}

// StrengthLabel grades an R² or a correlation by magnitude
func StrengthLabel(v float64) string {
	if v < 0 {
		v = -v
	}
	switch {
	case v > 0.7:
		return "Strong"
	case v > 0.4:
		return "Moderate"
	default:
		return "Weak"
	}
}

// VolatilityLabel grades a daily standard deviation given in percent
func VolatilityLabel(dailyPct float64) string {
	switch {
	case dailyPct > 3:
		return "High"
	case dailyPct > 1.5:
		return "Moderate"
	default:
		return "Low"
	}
}
