package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
)

// ReportInput is the Reporting Agent's request record. Risk and Analysis are
// optional; their sections are omitted when absent.
type ReportInput struct {
	Portfolio core.PortfolioData
	Risk      *core.RiskMetrics
	Analysis  *core.PortfolioAnalysis
}

// ReportingAgent assembles positions and computed totals into a sectioned
// report object.
type ReportingAgent struct {
	BaseAgent
}

// NewReportingAgent constructs the Reporting Agent.
func NewReportingAgent(b *bus.Bus, logger logging.Logger) *ReportingAgent {
	a := &ReportingAgent{
		BaseAgent: NewBaseAgent(core.AgentReporting, "Reporting Agent", b, logger),
	}
	a.SetDescription("Assembles portfolio positions and computed metrics into a sectioned report")
	return a
}

// Build produces the report.
func (a *ReportingAgent) Build(_ context.Context, input ReportInput) (core.PortfolioReport, error) {
	if input.Portfolio.Address == "" {
		return core.PortfolioReport{}, fmt.Errorf("portfolio address is required")
	}

	report := core.PortfolioReport{
		Address:     input.Portfolio.Address,
		GeneratedAt: time.Now().UTC(),
		TotalValue:  input.Portfolio.TotalValue,
		TokenCount:  len(input.Portfolio.Tokens),
		Risk:        input.Risk,
	}

	holdings := core.ReportSection{Title: "Holdings"}
	for _, tok := range input.Portfolio.Tokens {
		holdings.Lines = append(holdings.Lines, fmt.Sprintf(
			"%s: %s @ %s = $%s", tok.Symbol, tok.Balance, tok.Price, tok.USDValue.Round(2)))
	}
	if len(holdings.Lines) == 0 {
		holdings.Lines = []string{"No positions"}
	}
	report.Sections = append(report.Sections, holdings)

	report.Sections = append(report.Sections, core.ReportSection{
		Title: "Valuation",
		Lines: []string{
			fmt.Sprintf("Total value: $%s", input.Portfolio.TotalValue.Round(2)),
			fmt.Sprintf("Positions: %d", len(input.Portfolio.Tokens)),
			fmt.Sprintf("As of: %s", input.Portfolio.LastUpdated.Format(time.RFC3339)),
		},
	})

	if input.Risk != nil {
		risk := core.ReportSection{
			Title: "Risk",
			Lines: []string{
				fmt.Sprintf("Risk score: %.0f/100 (%s)", input.Risk.RiskScore, input.Risk.Level),
				fmt.Sprintf("Annualized volatility: %.1f%%", input.Risk.Volatility*100),
				fmt.Sprintf("1-day VaR (95%%): $%s", input.Risk.ValueAtRisk.Round(2)),
			},
		}
		risk.Lines = append(risk.Lines, input.Risk.Factors...)
		report.Sections = append(report.Sections, risk)
	}

	if input.Analysis != nil {
		rec := core.ReportSection{Title: "Recommendations"}
		rec.Lines = append(rec.Lines, input.Analysis.Recommendations...)
		if len(rec.Lines) == 0 {
			rec.Lines = []string{"No recommendations"}
		}
		report.Sections = append(report.Sections, rec)
	}

	a.Notify("report.generated", map[string]any{
		"address":  report.Address,
		"sections": len(report.Sections),
	})
	return report, nil
}
