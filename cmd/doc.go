// Package cmd implements the command-line interface for the gonefs RPC
// engine. It provides a hierarchical command structure for running the
// demo server and calling into it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the demo RPC server
//   - call: Commands for invoking the demo program's procedures
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See gonefs -help for a list of all commands.
package cmd
