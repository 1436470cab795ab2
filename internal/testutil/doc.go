// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core model objects (portfolios, bus
// messages). These helpers are intentionally minimal and avoid adding
// third-party dependencies beyond what the core already uses. They are not
// intended for production usage.
package testutil
