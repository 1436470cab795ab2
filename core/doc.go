// Package core defines the shared domain types exchanged between the message
// bus, the orchestrator and the individual agents: inter-agent messages, the
// uniform operation result envelope, portfolio and market records, and the
// Agent interface all computation units implement.
//
// Everything in this package is a plain data record. Entities are created per
// request and discarded once the response envelope has been produced; the
// message bus history is the only process-lifetime state in the system.
package core
