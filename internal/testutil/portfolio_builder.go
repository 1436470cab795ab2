package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/core"
)

// PortfolioBuilder provides a fluent helper for constructing portfolio
// snapshots in tests. Example:
//
//	p := NewPortfolioBuilder().Address("0xabc").
//		Token("ETH", "2.4", "2500").
//		Token("USDC", "4000", "1").
//		Build()
//
// USD values and the portfolio total are derived from balance and price, so
// assertions over weights stay consistent by construction.
type PortfolioBuilder struct {
	address string
	tokens  []core.TokenHolding
	updated time.Time
}

// NewPortfolioBuilder creates a builder with the update time defaulted to now.
func NewPortfolioBuilder() *PortfolioBuilder {
	return &PortfolioBuilder{updated: time.Now().UTC()}
}

// Address sets the wallet address (chainable).
func (b *PortfolioBuilder) Address(addr string) *PortfolioBuilder {
	b.address = addr
	return b
}

// Token appends a position from decimal strings for balance and price
// (chainable). Malformed strings panic, which is acceptable in tests.
func (b *PortfolioBuilder) Token(symbol, balance, price string) *PortfolioBuilder {
	bal := decimal.RequireFromString(balance)
	pr := decimal.RequireFromString(price)
	b.tokens = append(b.tokens, core.TokenHolding{
		Symbol:   symbol,
		Balance:  bal,
		Price:    pr,
		USDValue: bal.Mul(pr),
	})
	return b
}

// UpdatedAt overrides the snapshot time (chainable).
func (b *PortfolioBuilder) UpdatedAt(t time.Time) *PortfolioBuilder {
	b.updated = t
	return b
}

// Build assembles the snapshot, summing token USD values into the total.
func (b *PortfolioBuilder) Build() core.PortfolioData {
	data := core.PortfolioData{
		Address:     b.address,
		Tokens:      b.tokens,
		LastUpdated: b.updated,
	}
	for _, tok := range b.tokens {
		data.TotalValue = data.TotalValue.Add(tok.USDValue)
	}
	return data
}
