// Package client implements the calling side of the RPC engine: building
// CALL messages, multiplexing any number of in-flight calls over a single
// framed connection, and correlating asynchronously arriving replies back
// to their callers by transaction id.
//
// Key Components:
//
//   - Client: One RPC program bound to one connection. Thread-safe; calls
//     from concurrent goroutines share the connection and are resolved
//     independently, in whatever order replies arrive.
//
//   - Reply: The resolved outcome of a call. A reply the remote did not
//     accept carries no decoded body, so callers check Success before
//     consuming the payload.
//
// The reply pump runs as one background goroutine per connection. When the
// transport dies, every pending call is failed with ErrConnClosed rather
// than left suspended.
package client
