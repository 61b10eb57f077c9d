package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration (shared between client and server)
// --------------------------------------------------------------------------

// TransportConfig holds socket level tuning options. All fields are optional,
// the zero value leaves the socket with its OS defaults. TCP specific fields
// are ignored by the unix transport.
type TransportConfig struct {
	// TCPNoDelay disables Nagle's algorithm when set
	TCPNoDelay bool
	// TCPKeepAliveSec enables TCP keep-alive with the given interval (0 = off)
	TCPKeepAliveSec int
	// TCPLingerSec sets the socket linger time (-1 = OS default)
	TCPLingerSec int
	// ReadBufferSize sets the socket read buffer size in bytes (0 = OS default)
	ReadBufferSize int
	// WriteBufferSize sets the socket write buffer size in bytes (0 = OS default)
	WriteBufferSize int
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for an RPC client.
type ClientConfig struct {
	// Endpoint is the server address (host:port for tcp, a path for unix)
	Endpoint string

	// TimeoutSecond is the per-call deadline. 0 means a call waits until
	// the connection dies.
	TimeoutSecond int

	// Transport holds socket tuning options
	Transport TransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Client")
	addField("Endpoint", c.Endpoint)
	addField("Call Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Socket")
	addField("TCP NoDelay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for an RPC server.
type ServerConfig struct {
	// Endpoint is the listen address (host:port for tcp, a path for unix)
	Endpoint string

	// LogLevel is the level at which logs will be output (debug, info, warn, error)
	LogLevel string

	// Transport holds socket tuning options applied to accepted connections
	Transport TransportConfig
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Socket")
	addField("TCP NoDelay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))

	return sb.String()
}
