package models

const (
	MinYears = 1
	MaxYears = 25

	DefaultYears        = 1
	DefaultRiskFreeRate = 0.0

	// rows shown at each end of the merged price table
	HeadTailRows = 5
)

// StockOptions are the symbols offered for selection, any other symbol is still accepted
var StockOptions = []string{"AAPL", "GOOGL", "MSFT", "NFLX", "AMZN", "TSLA", "META", "NVDA", "JPM", "MGM"}

// CapmSettingsResources will be the resources for the request form, rest will be simple numbers provided by user
type CapmSettingsResources struct {
	Stocks              []string `json:"stocks"`
	DefaultStocks       []string `json:"defaultStocks"`
	MinYears            int      `json:"minYears"`
	MaxYears            int      `json:"maxYears"`
	DefaultYears        int      `json:"defaultYears"`
	DefaultRiskFreeRate float64  `json:"defaultRiskFreeRate"`
	Benchmark           string   `json:"benchmark"`
}

// GetCapmSettingsResources will return the selectable settings.
// This approach makes sure the cli and the api share the same limits
func GetCapmSettingsResources(benchmark string) CapmSettingsResources {
	return CapmSettingsResources{
		Stocks:              append([]string(nil), StockOptions...),
		DefaultStocks:       append([]string(nil), StockOptions[:4]...),
		MinYears:            MinYears,
		MaxYears:            MaxYears,
		DefaultYears:        DefaultYears,
		DefaultRiskFreeRate: DefaultRiskFreeRate,
		Benchmark:           benchmark,
	}
}
