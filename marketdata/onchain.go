package marketdata

import (
	"context"
	"fmt"
	"math/big"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/metrics"
)

// balanceOfSelector is the 4-byte selector of ERC-20 balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// TokenRef identifies an ERC-20 token whose balance should be included in an
// on-chain portfolio snapshot.
type TokenRef struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Contract string `json:"contract" yaml:"contract"`
	Decimals int32  `json:"decimals" yaml:"decimals"`
}

// ethCaller is the subset of ethclient.Client the reader needs; narrowed for
// testability.
type ethCaller interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainReader reads native and ERC-20 balances from an EVM RPC endpoint.
type ChainReader struct {
	eth    ethCaller
	closer func()
}

// NewChainReader dials the RPC endpoint and returns a ready-to-use reader.
func NewChainReader(ctx context.Context, rpcURL string) (*ChainReader, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	return &ChainReader{eth: eth, closer: eth.Close}, nil
}

// NewChainReaderFromBackend wraps an existing backend, mainly for tests.
func NewChainReaderFromBackend(backend ethCaller) *ChainReader {
	return &ChainReader{eth: backend, closer: func() {}}
}

// Close releases the underlying RPC connection.
func (r *ChainReader) Close() { r.closer() }

// NativeBalance returns the address's native coin balance in whole units
// (wei scaled by 1e-18).
func (r *ChainReader) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address %q", address)
	}
	wei, err := r.observe(func() (*big.Int, error) {
		return r.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("native balance for %s: %w", address, err)
	}
	return decimal.NewFromBigInt(wei, -18), nil
}

// TokenBalance returns the holder's balance of the given ERC-20 token in
// whole units, via an eth_call to balanceOf.
func (r *ChainReader) TokenBalance(ctx context.Context, token TokenRef, holder string) (decimal.Decimal, error) {
	if !common.IsHexAddress(token.Contract) {
		return decimal.Zero, fmt.Errorf("invalid token contract %q", token.Contract)
	}
	if !common.IsHexAddress(holder) {
		return decimal.Zero, fmt.Errorf("invalid holder address %q", holder)
	}

	contract := common.HexToAddress(token.Contract)
	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(common.HexToAddress(holder).Bytes(), 32)...)

	raw, err := r.observe(func() (*big.Int, error) {
		out, callErr := r.eth.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: data}, nil)
		if callErr != nil {
			return nil, callErr
		}
		return new(big.Int).SetBytes(out), nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s for %s: %w", token.Symbol, holder, err)
	}
	return decimal.NewFromBigInt(raw, -token.Decimals), nil
}

func (r *ChainReader) observe(fn func() (*big.Int, error)) (*big.Int, error) {
	start := time.Now()
	out, err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("chain", status).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues("chain").Observe(time.Since(start).Seconds())
	return out, err
}

// OnChainService is a Service whose portfolio snapshots come from on-chain
// balances instead of the upstream portfolio endpoint. Prices, series and
// prediction signals still come from the embedded service.
type OnChainService struct {
	Service
	reader       *ChainReader
	nativeSymbol string
	tokens       []TokenRef
}

// NewOnChainService wraps inner so Portfolio composes from chain state.
func NewOnChainService(inner Service, reader *ChainReader, nativeSymbol string, tokens []TokenRef) *OnChainService {
	if nativeSymbol == "" {
		nativeSymbol = "ETH"
	}
	return &OnChainService{Service: inner, reader: reader, nativeSymbol: nativeSymbol, tokens: tokens}
}

// Portfolio reads balances from the chain and prices them with the embedded
// service.
func (s *OnChainService) Portfolio(ctx context.Context, address string) (core.PortfolioData, error) {
	return ComposePortfolio(ctx, s.reader, s.Service, address, s.nativeSymbol, s.tokens)
}

// ComposePortfolio builds a portfolio snapshot from on-chain balances priced
// with the given service. Tokens with a zero balance are skipped; a token
// whose price is missing from the feed is included with a zero USD value.
func ComposePortfolio(ctx context.Context, reader *ChainReader, prices Service, address, nativeSymbol string, tokens []TokenRef) (core.PortfolioData, error) {
	nativeBalance, err := reader.NativeBalance(ctx, address)
	if err != nil {
		return core.PortfolioData{}, err
	}

	type holding struct {
		symbol  string
		balance decimal.Decimal
	}
	holdings := []holding{{symbol: nativeSymbol, balance: nativeBalance}}
	symbols := []string{nativeSymbol}

	for _, tok := range tokens {
		balance, balErr := reader.TokenBalance(ctx, tok, address)
		if balErr != nil {
			return core.PortfolioData{}, balErr
		}
		if balance.IsZero() {
			continue
		}
		holdings = append(holdings, holding{symbol: tok.Symbol, balance: balance})
		symbols = append(symbols, tok.Symbol)
	}

	priceMap, err := prices.SpotPrices(ctx, symbols)
	if err != nil {
		return core.PortfolioData{}, fmt.Errorf("price portfolio holdings: %w", err)
	}

	data := core.PortfolioData{
		Address:     address,
		LastUpdated: time.Now().UTC(),
	}
	for _, h := range holdings {
		price := priceMap[h.symbol]
		usd := h.balance.Mul(price)
		data.Tokens = append(data.Tokens, core.TokenHolding{
			Symbol:   h.symbol,
			Balance:  h.balance,
			Price:    price,
			USDValue: usd,
		})
		data.TotalValue = data.TotalValue.Add(usd)
	}
	return data, nil
}
