// Package xdr implements the External Data Representation encoding
// (RFC 4506) used by ONC RPC, plus the Codec contract that procedure
// tables are built from.
//
// The package focuses on:
//   - Encoder/Decoder for the XDR primitives the engine needs
//     (4-byte aligned, big endian, length-prefixed opaque data)
//   - The Codec interface consumed by the client and server packages
//   - Stock codecs for primitive types (uint32, int32, bool, string,
//     opaque, void)
//
// Composite codecs for application types are expected to come from a
// generated stub layer and only need to satisfy the Codec interface.
package xdr
