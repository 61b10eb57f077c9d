// Package proto defines the ONC RPC message model (RFC 5531): call and
// reply headers, authentication stubs, and the status enumerations, plus
// their XDR pack/unpack routines.
//
// A Message is only the parsed header. The argument or result bytes that
// follow it on the wire stay opaque at this layer and travel alongside the
// header in an Envelope; they are interpreted by the procedure-table codecs
// in the client and server packages.
package proto
