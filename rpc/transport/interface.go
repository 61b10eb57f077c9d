package transport

import (
	"errors"
	"net"
	"time"

	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/proto"
)

// MaxMessageBytes is the maximum size of one reassembled RPC message.
// Larger than UDP would allow anyway.
const MaxMessageBytes = 100_000

var (
	// ErrMessageTooLarge is returned when the fragments of one record
	// add up to more than MaxMessageBytes. The transport is unusable
	// afterwards and must be closed.
	ErrMessageTooLarge = errors.New("transport: rpc message exceeds maximum size")

	// ErrClosed is returned when reading from or writing to a transport
	// whose stream has ended.
	ErrClosed = errors.New("transport: closed")
)

// --------------------------------------------------------------------------
// Message Transport
// --------------------------------------------------------------------------

// IRPCTransport owns one byte stream and moves whole RPC messages over it
// using the record-marking framing scheme.
type IRPCTransport interface {
	// WriteMessage serializes the header, appends the body bytes and
	// writes the result as a single framed record. The write is atomic
	// with respect to other WriteMessage calls on the same transport.
	WriteMessage(msg *proto.Message, body []byte) error

	// ReadMessage reassembles one record from the stream and parses it
	// into a header plus the unread payload bytes. A read deadline set
	// via SetReadDeadline is honored only while waiting for a record to
	// start; reassembly of a record that has begun is never cut short.
	ReadMessage() (*proto.Envelope, error)

	// SetReadDeadline sets the deadline for the next ReadMessage call
	SetReadDeadline(t time.Time) error

	// Close shuts the stream down, with a graceful half-close where the
	// underlying connection supports one. Safe to call multiple times.
	Close() error

	// Closed reports whether either direction of the stream has reached
	// end-of-stream or closing state.
	Closed() bool
}

// --------------------------------------------------------------------------
// Connectors (closed set of stream transport variants: tcp, unix)
// --------------------------------------------------------------------------

// IClientConnector defines the transport-specific dial operations
type IClientConnector interface {
	// Connect establishes a connection to the given endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// IServerConnector defines the transport-specific listen operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}
