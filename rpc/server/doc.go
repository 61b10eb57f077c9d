// Package server implements the serving side of the RPC engine: validating
// a program's handler table at construction, accepting stream connections,
// and dispatching incoming calls to their bound handlers.
//
// Key Components:
//
//   - Def/Server: A program definition is checked structurally when the
//     server is built. Every declared procedure needs a handler or an
//     explicit opt-out via the Unimplemented list; a hole fails
//     construction before any connection is accepted.
//
//   - ConnCtx: Per-connection state bag handed to handlers. Connections
//     share nothing mutable with each other.
//
//   - Acceptor loop: One goroutine per connection reads framed messages,
//     ignores non-calls, and dispatches calls synchronously. Any dispatch
//     fault (unknown procedure, decode failure, handler error or panic)
//     answers with one accepted/system-error reply and tears that
//     connection down; the accept loop and other connections are
//     unaffected.
package server
