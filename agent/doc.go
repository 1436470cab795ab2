// Package agent implements the five computation units of the portfolio
// system and the registry the orchestrator resolves them from:
//
//   - RiskAgent ("risk") computes volatility, VaR and a composite risk score
//     from price series and position weights.
//   - HedgingAgent ("hedging") derives a hedge recommendation from risk
//     output, an asset symbol and a notional value.
//   - SettlementAgent ("settlement") validates and forwards payments to the
//     external facilitator.
//   - ReportingAgent ("reporting") assembles the sectioned portfolio report.
//   - LeadAgent ("lead") runs the portfolio analysis routine and the
//     portfolio-action decision table, optionally enriching both with AI
//     commentary.
//
// Agents are flat, stateless units. Each publishes progress notifications on
// the message bus as it works; none of them retries upstream calls or holds
// state across requests.
package agent
