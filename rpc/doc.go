// Package rpc provides an ONC RPC (Sun RPC, RFC 5531) engine: the
// transport, client, and server machinery that NFS-style protocols are
// built on.
//
// The package is organized into several subpackages:
//
//   - xdr: XDR primitive encoding and the Codec contract that procedure
//     tables are assembled from.
//
//   - proc: Procedure descriptors and program tables, the interface
//     boundary to a generated stub layer.
//
//   - proto: The RFC 5531 message model (call/reply headers, status
//     enumerations) and its XDR pack/unpack.
//
//   - transport: Record-marking framing over stream sockets, with
//     pluggable connector variants (tcp, unix) around a shared base
//     implementation.
//
//   - client: Call issuance and reply correlation, multiplexing concurrent
//     calls over one connection by transaction id.
//
//   - server: Handler-table validation, per-connection dispatch loops, and
//     protocol-level error replies.
//
//   - common: Configuration structures and logging shared by both roles.
package rpc
