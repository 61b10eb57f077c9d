// Package transport defines the interfaces and abstractions for moving
// framed RPC messages over a byte stream. It provides a common contract
// that all transport implementations must fulfill, keeping the client and
// server dispatch logic protocol-agnostic.
//
// The package focuses on:
//   - The IRPCTransport contract for whole-message reads and writes
//   - Connector interfaces that reduce a new stream transport to its
//     dial/listen/socket-tuning specifics
//   - The wire-level limits and error values shared by all variants
//
// Key Components:
//
//   - IRPCTransport: One record-marked byte stream. Implemented by the
//     base package, which tcp and unix wrap with their connectors.
//
//   - IClientConnector/IServerConnector: The closed set of stream
//     transport variants (tcp, unix).
package transport
