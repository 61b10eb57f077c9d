// Package common provides configuration structures and logging utilities
// shared across the RPC engine. It is imported by both the client and the
// server side and deliberately contains no wire-level code.
//
// Key Components:
//
//   - ClientConfig / ServerConfig: Configuration for the two endpoint roles,
//     with String() pretty-printers used at startup.
//
//   - TransportConfig: Socket tuning knobs (TCP_NODELAY, keep-alive, linger,
//     buffer sizes) applied by the transport connectors.
//
//   - Logger: Custom logging implementation that plugs into dragonboat's
//     logger facade while providing consistent formatting across the
//     application.
package common
