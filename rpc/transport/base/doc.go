// Package base implements the record-marking framed transport shared by all
// stream transport variants (TCP, Unix sockets). It carries whole RPC
// messages over one net.Conn, independent of how that connection was made.
//
// The package focuses on:
//   - Framing outgoing messages as a single final fragment, written with
//     net.Buffers so header and payload leave in one writev call
//   - Reassembling incoming records from one or more fragments, enforcing
//     the maximum message size before buffering fragment data
//   - Surviving poll deadlines without losing stream sync: a partially
//     read length word is kept across ReadMessage calls
//   - Idempotent close with a TCP-style half-close where available
//
// Thread Safety:
//
//	WriteMessage may be called from any number of goroutines; the write
//	mutex guarantees messages never interleave. ReadMessage is
//	single-consumer: the owning reply pump (client) or connection loop
//	(server) is the only reader.
package base
