// Package clockproc is a small RPC program (time, echo, arithmetic) used
// by the CLI and the end-to-end tests. It is written the way a generated
// stub layer would look: a procedure table built from codecs, a handler
// set for the server, and a typed client wrapper.
//
// The BENCH procedure is declared but deliberately unimplemented, which
// exercises the server's opt-out list.
package clockproc
