package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/proc"
	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport"
	"github.com/gonefs/gonefs/rpc/transport/base"
	"github.com/gonefs/gonefs/rpc/xdr"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

var (
	// ErrArgCount is returned when the number of call arguments does not
	// match the procedure's declared arity.
	ErrArgCount = errors.New("client: wrong number of arguments")

	// ErrConnClosed resolves every call still pending when the
	// connection dies, and is returned by calls issued afterwards.
	ErrConnClosed = errors.New("client: connection closed")

	// ErrTimeout is returned when a call's deadline passes without a reply.
	ErrTimeout = errors.New("client: call timed out")
)

var (
	callsSent      = metrics.NewCounter("rpc_client_calls_total")
	repliesMatched = metrics.NewCounter("rpc_client_replies_matched_total")
	repliesDropped = metrics.NewCounter("rpc_client_replies_dropped_total")
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// callResult resolves one pending call
type callResult struct {
	env *proto.Envelope
	err error
}

// Reply is the outcome of one call. Msg is always set; Body holds the
// decoded return value only when the reply was accepted with a SUCCESS
// dispatch status, so callers must check Success before using it. Raw
// keeps the undecoded result bytes.
type Reply struct {
	Msg  *proto.Message
	Raw  []byte
	Body any
}

// Success reports whether the call reached and was processed by the remote
// dispatch layer. See proto.Message.Success.
func (r *Reply) Success() bool {
	return r.Msg.Success()
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client issues calls for one RPC program over one multiplexed connection.
// Any number of goroutines may call concurrently; replies are correlated
// back to their callers purely by transaction id, never by send order.
type Client struct {
	prog      uint32
	vers      uint32
	procs     proc.Table
	connector transport.IClientConnector
	config    common.ClientConfig

	connMu    sync.Mutex // guards transport during (lazy) connect
	transport transport.IRPCTransport

	pending *xsync.MapOf[uint32, chan callResult]
}

// New creates a client for the given program. The connection is established
// lazily on the first call, or explicitly via Connect.
func New(prog, vers uint32, procs proc.Table, connector transport.IClientConnector, config common.ClientConfig) *Client {
	return &Client{
		prog:      prog,
		vers:      vers,
		procs:     procs,
		connector: connector,
		config:    config,
		pending:   xsync.NewMapOf[uint32, chan callResult](),
	}
}

// Connect establishes the connection and starts the reply pump. Calling
// Connect on a client whose previous connection died establishes a fresh
// one; pending calls of the old connection stay failed. Call itself never
// reconnects a dead transport, reconnection is the caller's decision.
func (c *Client) Connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.transport != nil && !c.transport.Closed() {
		return nil
	}
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := c.connector.Connect(c.config.Endpoint)
	if err != nil {
		return fmt.Errorf("client: failed to connect to %s: %w", c.config.Endpoint, err)
	}
	if err := c.connector.UpgradeConnection(conn, c.config.Transport); err != nil {
		conn.Close()
		return fmt.Errorf("client: failed to upgrade connection to %s: %w", c.config.Endpoint, err)
	}

	t := base.New(conn)
	c.transport = t
	Logger.Infof("connected to %s via %s", c.config.Endpoint, c.connector.GetName())

	go c.pumpReplies(t)
	return nil
}

// Close shuts the connection down and fails all pending calls.
func (c *Client) Close() error {
	c.connMu.Lock()
	t := c.transport
	c.connMu.Unlock()

	if t == nil {
		return nil
	}
	err := t.Close()
	c.failPending(ErrConnClosed)
	return err
}

// --------------------------------------------------------------------------
// Argument packing
// --------------------------------------------------------------------------

// PackArgs serializes args in declaration order using the procedure's
// argument codecs and concatenates the result.
func (c *Client) PackArgs(procID uint32, args []any) ([]byte, error) {
	p, ok := c.procs[procID]
	if !ok {
		return nil, fmt.Errorf("client: unknown procedure %d", procID)
	}
	if len(args) != len(p.Args) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, p.Name, len(p.Args), len(args))
	}

	enc := xdr.NewEncoder()
	for i, codec := range p.Args {
		if err := codec.Pack(enc, args[i]); err != nil {
			return nil, fmt.Errorf("client: %s argument %d: %w", p.Name, i, err)
		}
	}
	return enc.Bytes(), nil
}

// --------------------------------------------------------------------------
// Call issuance
// --------------------------------------------------------------------------

// Call issues procID with a freshly generated transaction id and waits for
// the matching reply. See CallXid.
func (c *Client) Call(ctx context.Context, procID uint32, args ...any) (*Reply, error) {
	return c.CallXid(ctx, c.nextXid(), procID, args...)
}

// CallXid issues procID under the given transaction id and suspends the
// caller until the reply pump resolves it, the context is canceled, or the
// configured per-call deadline passes. On a reply that was not accepted the
// returned Reply carries no decoded body and no error; callers check
// Reply.Success before consuming the payload.
func (c *Client) CallXid(ctx context.Context, xid uint32, procID uint32, args ...any) (*Reply, error) {
	body, err := c.PackArgs(procID, args)
	if err != nil {
		return nil, err
	}

	c.connMu.Lock()
	if c.transport == nil {
		if err := c.connectLocked(); err != nil {
			c.connMu.Unlock()
			return nil, err
		}
	} else if c.transport.Closed() {
		c.connMu.Unlock()
		return nil, ErrConnClosed
	}
	t := c.transport
	c.connMu.Unlock()

	// Register the pending handle before writing so a fast reply cannot
	// race past the table
	respCh := make(chan callResult, 1)
	c.pending.Store(xid, respCh)

	msg := proto.NewCall(xid, c.prog, c.vers, procID)
	if err := t.WriteMessage(msg, body); err != nil {
		c.pending.Delete(xid)
		if errors.Is(err, transport.ErrClosed) {
			return nil, ErrConnClosed
		}
		return nil, err
	}
	callsSent.Inc()

	// Optional per-call deadline. Zero config means the call waits until
	// the reply arrives or the connection dies.
	var timeoutCh <-chan time.Time
	if c.config.TimeoutSecond > 0 {
		timer := time.NewTimer(time.Duration(c.config.TimeoutSecond) * time.Second)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			return nil, res.err
		}
		return c.unpackReply(procID, res.env)
	case <-ctx.Done():
		c.pending.Delete(xid)
		return nil, ctx.Err()
	case <-timeoutCh:
		c.pending.Delete(xid)
		return nil, fmt.Errorf("%w: proc %d xid %d after %ds", ErrTimeout, procID, xid, c.config.TimeoutSecond)
	}
}

// unpackReply decodes the result of a resolved call. The return codec is
// applied only when the remote both accepted the call and dispatched it
// successfully; in every other case the payload carries no result.
func (c *Client) unpackReply(procID uint32, env *proto.Envelope) (*Reply, error) {
	reply := &Reply{Msg: env.Msg, Raw: env.Body}

	if !env.Msg.Success() {
		return reply, nil
	}
	if acc := env.Msg.Reply.Accepted; acc == nil || acc.Stat != proto.Success {
		return reply, nil
	}

	p := c.procs[procID]
	dec := xdr.NewDecoder(env.Body)
	body, err := p.Ret.Unpack(dec)
	if err != nil {
		return reply, fmt.Errorf("client: failed to decode %s result: %w", p.Name, err)
	}
	reply.Body = body
	return reply, nil
}

// nextXid draws a random 32-bit transaction id, avoiding collisions with
// calls still outstanding
func (c *Client) nextXid() uint32 {
	for {
		xid := rand.Uint32()
		if _, taken := c.pending.Load(xid); !taken {
			return xid
		}
	}
}

// --------------------------------------------------------------------------
// Reply pump
// --------------------------------------------------------------------------

// pumpReplies reads framed messages in a loop and resolves the pending call
// each one correlates to. Runs as one goroutine per connection; exits when
// the transport dies and then fails every call still pending.
func (c *Client) pumpReplies(t transport.IRPCTransport) {
	for !t.Closed() {
		env, err := t.ReadMessage()
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				Logger.Errorf("reply pump stopped: %v", err)
			}
			break
		}

		// A non-reply received by a client is a confused peer, not a
		// broken channel
		if env.Msg.Type != proto.Reply {
			Logger.Warningf("ignoring %s message xid %d on client connection", env.Msg.Type, env.Msg.Xid)
			continue
		}

		ch, ok := c.pending.LoadAndDelete(env.Msg.Xid)
		if !ok {
			// Unsolicited or already-resolved reply
			repliesDropped.Inc()
			Logger.Warningf("dropping reply with unknown xid %d", env.Msg.Xid)
			continue
		}

		repliesMatched.Inc()
		ch <- callResult{env: env}
	}

	_ = t.Close()
	c.failPending(ErrConnClosed)
}

// failPending resolves every pending call with err. LoadAndDelete keeps
// resolution exactly-once against a concurrently matching pump.
func (c *Client) failPending(err error) {
	c.pending.Range(func(xid uint32, _ chan callResult) bool {
		if ch, ok := c.pending.LoadAndDelete(xid); ok {
			ch <- callResult{err: err}
		}
		return true
	})
}
