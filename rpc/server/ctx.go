package server

import (
	"net"

	"github.com/puzpuzpuz/xsync/v3"
)

// ConnCtx is the per-connection state bag handed to every handler invoked
// on that connection. It is created on accept and dies with the connection;
// the engine never shares mutable state across connections.
type ConnCtx struct {
	remoteAddr net.Addr
	state      *xsync.MapOf[string, any]
}

// NewConnCtx creates an empty context for a connection from addr
func NewConnCtx(addr net.Addr) *ConnCtx {
	return &ConnCtx{
		remoteAddr: addr,
		state:      xsync.NewMapOf[string, any](),
	}
}

// RemoteAddr returns the peer address of the connection
func (c *ConnCtx) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// Get returns the value stored under key
func (c *ConnCtx) Get(key string) (any, bool) {
	return c.state.Load(key)
}

// Set stores a value under key
func (c *ConnCtx) Set(key string, value any) {
	c.state.Store(key, value)
}

// Delete removes the value stored under key
func (c *ConnCtx) Delete(key string) {
	c.state.Delete(key)
}
