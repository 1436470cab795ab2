package agent

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/internal/testutil"
	"github.com/quantmesh/quantmesh/model"
)

// stubMarket is a canned marketdata.Service for agent tests.
type stubMarket struct {
	prices    map[string]decimal.Decimal
	series    map[string][]float64
	preds     []core.Prediction
	portfolio core.PortfolioData
	err       error
}

func (s *stubMarket) SpotPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]decimal.Decimal{}
	for _, sym := range symbols {
		out[sym] = s.prices[sym]
	}
	return out, nil
}

func (s *stubMarket) PriceSeries(_ context.Context, symbol string, _ int) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	closes, ok := s.series[symbol]
	if !ok {
		return nil, errors.New("no series for " + symbol)
	}
	return closes, nil
}

func (s *stubMarket) Predictions(_ context.Context, _ string) ([]core.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.preds, nil
}

func (s *stubMarket) Portfolio(_ context.Context, _ string) (core.PortfolioData, error) {
	if s.err != nil {
		return core.PortfolioData{}, s.err
	}
	return s.portfolio, nil
}

// stubModel returns a fixed completion or error.
type stubModel struct {
	text string
	err  error
}

func (m *stubModel) Complete(_ context.Context, _ model.Request) (model.Response, error) {
	if m.err != nil {
		return model.Response{}, m.err
	}
	return model.Response{Text: m.text}, nil
}

func (m *stubModel) Info() model.Info { return model.Info{Name: "stub", Provider: "test"} }

// stubFacilitator records submitted settlements.
type stubFacilitator struct {
	submitted []core.SettlementRequest
	err       error
}

func (f *stubFacilitator) Submit(_ context.Context, req core.SettlementRequest) (core.SettlementReceipt, error) {
	if f.err != nil {
		return core.SettlementReceipt{}, f.err
	}
	f.submitted = append(f.submitted, req)
	return core.SettlementReceipt{
		RequestID:   req.ID,
		Status:      core.SettlementSettled,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

func usd(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func twoAssetPortfolio() core.PortfolioData {
	return testutil.NewPortfolioBuilder().
		Address("0xabc").
		Token("ETH", "2.4", "2500").
		Token("USDC", "4000", "1").
		Build()
}
