package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	sm "capm/service/models"
)

func render(w io.Writer, res *sm.CapmResponse, details []*sm.BetaResponse) {
	fmt.Fprintf(w, "%s %s to %s, %d observations, market return %.2f%%, risk free %.2f%%\n",
		res.Benchmark, res.Start, res.End, res.Observations, res.AnnualizedMarketReturn, res.RiskFreeRate)
	if res.DroppedRows > 0 {
		fmt.Fprintf(w, "%d rows dropped for non finite returns\n", res.DroppedRows)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Beta", "Expected Return %", "Alpha", "R²", "Correlation", "Volatility %", "Risk"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for i, row := range res.Stocks {
		d := details[i]
		t.AppendRow(table.Row{
			row.Symbol,
			fmt.Sprintf("%.2f", row.Beta),
			fmt.Sprintf("%.2f", row.ExpectedReturn),
			fmt.Sprintf("%.2f", d.Alpha),
			fmt.Sprintf("%.2f", d.RSquared),
			fmt.Sprintf("%.2f", d.Correlation),
			fmt.Sprintf("%.2f", d.Volatility),
			d.Risk.Level,
		})
	}
	t.Render()

	if res.Correlations != nil {
		renderCorrelations(w, res.Correlations)
	}
}

func renderCorrelations(w io.Writer, corr *sm.CorrelationTable) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Return correlations")

	header := table.Row{""}
	for _, s := range corr.Symbols {
		header = append(header, s)
	}
	t.AppendHeader(header)

	for i, s := range corr.Symbols {
		row := table.Row{s}
		for _, v := range corr.Values[i] {
			row = append(row, fmt.Sprintf("%.2f", v))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func renderBeta(w io.Writer, d *sm.BetaResponse) {
	fmt.Fprintf(w, "%s against %s, %s to %s, %d observations\n", d.Symbol, d.Benchmark, d.Start, d.End, d.Observations)
	fmt.Fprintf(w, "beta %.2f, alpha %.2f, expected return %.2f%%\n", d.Beta, d.Alpha, d.ExpectedReturn)
	fmt.Fprintf(w, "%s: %s\n%s\n", d.Risk.Level, d.Risk.Summary, d.Risk.Interpretation)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value", "Interpretation"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.AppendRows([]table.Row{
		{"R²", fmt.Sprintf("%.2f", d.RSquared), d.RSquaredStrength + " relationship with market"},
		{"Correlation with market", fmt.Sprintf("%.2f", d.Correlation), d.CorrelationStrength + " correlation"},
		{"Stock volatility %", fmt.Sprintf("%.2f", d.Volatility), d.VolatilityLevel + " volatility"},
		{"Market volatility %", fmt.Sprintf("%.2f", d.MarketVolatility), "Market volatility reference"},
		{"Annualized stock volatility %", fmt.Sprintf("%.2f", d.AnnualizedVolatility), ""},
		{"Annualized market volatility %", fmt.Sprintf("%.2f", d.AnnualizedMarketVolatility), ""},
	})
	t.Render()
}
