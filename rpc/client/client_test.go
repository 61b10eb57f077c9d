package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/proc"
	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport"
	"github.com/gonefs/gonefs/rpc/transport/base"
	"github.com/gonefs/gonefs/rpc/xdr"
)

const (
	testProg uint32 = 0x20000099
	testVers uint32 = 1

	procEcho uint32 = 1
	procAdd  uint32 = 2
)

// testProcs is the procedure table used by the tests
func testProcs() proc.Table {
	return proc.Table{
		procEcho: {ID: procEcho, Name: "ECHO", Args: []xdr.Codec{xdr.StringC}, Ret: xdr.StringC},
		procAdd:  {ID: procAdd, Name: "ADD", Args: []xdr.Codec{xdr.Int32C, xdr.Int32C}, Ret: xdr.Int32C},
	}
}

// testConnector hands out pre-made connections, one per Connect call
type testConnector struct {
	mu    sync.Mutex
	conns []net.Conn
}

func (c *testConnector) Connect(string) (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.conns) == 0 {
		return nil, errors.New("no connection available")
	}
	conn := c.conns[0]
	c.conns = c.conns[1:]
	return conn, nil
}

func (c *testConnector) GetName() string { return "pipe" }

func (c *testConnector) UpgradeConnection(net.Conn, common.TransportConfig) error { return nil }

// newTestClient returns a client wired to an in-memory pipe and the framed
// server end of that pipe
func newTestClient(t *testing.T) (*Client, *base.Transport) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})

	connector := &testConnector{conns: []net.Conn{c1}}
	c := New(testProg, testVers, testProcs(), connector, common.ClientConfig{Endpoint: "pipe"})
	t.Cleanup(func() { c.Close() })
	return c, base.New(c2)
}

// readCall reads the next message on the server end and fails the test if it
// is not a CALL
func readCall(t *testing.T, st *base.Transport) *proto.Envelope {
	t.Helper()
	env, err := st.ReadMessage()
	if err != nil {
		t.Errorf("Server failed to read call: %v", err)
		return nil
	}
	if env.Msg.Type != proto.Call {
		t.Errorf("Server expected a CALL, got %s", env.Msg.Type)
		return nil
	}
	return env
}

// echoReply builds the success reply to an ECHO call, returning the string
// argument unchanged
func echoReply(t *testing.T, st *base.Transport, env *proto.Envelope) {
	t.Helper()
	arg, err := xdr.NewDecoder(env.Body).String()
	if err != nil {
		t.Errorf("Server failed to decode echo argument: %v", err)
		return
	}
	e := xdr.NewEncoder()
	e.String(arg)
	reply := proto.NewAcceptedReply(env.Msg.Xid, proto.MsgAccepted, proto.Success)
	if err := st.WriteMessage(reply, e.Bytes()); err != nil {
		t.Errorf("Server failed to write reply: %v", err)
	}
}

// TestCallRoundTrip tests one call through the full client path: argument
// packing, header construction, correlation, and result decoding
func TestCallRoundTrip(t *testing.T) {
	c, st := newTestClient(t)

	go func() {
		env := readCall(t, st)
		if env == nil {
			return
		}
		cb := env.Msg.Call
		if cb.RPCVers != proto.RPCVersion || cb.Prog != testProg || cb.Vers != testVers || cb.Proc != procEcho {
			t.Errorf("Wrong call header: %+v", cb)
		}
		if cb.Cred.Flavor != proto.AuthNone {
			t.Errorf("Expected AUTH_NONE credential, got flavor %d", cb.Cred.Flavor)
		}
		echoReply(t, st, env)
	}()

	reply, err := c.Call(context.Background(), procEcho, "ping")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !reply.Success() {
		t.Fatal("Reply should report success")
	}
	if reply.Body != "ping" {
		t.Errorf("Expected echoed %q, got %v", "ping", reply.Body)
	}
}

// TestOutOfOrderCorrelation tests that replies arriving in a different order
// than the calls were sent still reach the right callers
func TestOutOfOrderCorrelation(t *testing.T) {
	c, st := newTestClient(t)

	// Collect both calls first, then reply in reverse arrival order
	go func() {
		first := readCall(t, st)
		second := readCall(t, st)
		if first == nil || second == nil {
			return
		}
		echoReply(t, st, second)
		echoReply(t, st, first)
	}()

	var wg sync.WaitGroup
	results := make(map[uint32]string)
	var mu sync.Mutex

	for xid, arg := range map[uint32]string{100: "alpha", 200: "beta"} {
		wg.Add(1)
		go func(xid uint32, arg string) {
			defer wg.Done()
			reply, err := c.CallXid(context.Background(), xid, procEcho, arg)
			if err != nil {
				t.Errorf("Call xid %d failed: %v", xid, err)
				return
			}
			mu.Lock()
			results[xid] = reply.Body.(string)
			mu.Unlock()
		}(xid, arg)
	}
	wg.Wait()

	if results[100] != "alpha" || results[200] != "beta" {
		t.Errorf("Replies delivered to the wrong callers: %v", results)
	}
}

// TestUnsolicitedReplyDropped tests that a reply with an unknown xid is
// discarded without disturbing the call in flight
func TestUnsolicitedReplyDropped(t *testing.T) {
	c, st := newTestClient(t)

	go func() {
		env := readCall(t, st)
		if env == nil {
			return
		}
		// An xid nothing is waiting for, then the real reply
		stray := proto.NewAcceptedReply(env.Msg.Xid+1, proto.MsgAccepted, proto.Success)
		if err := st.WriteMessage(stray, nil); err != nil {
			t.Errorf("Server failed to write stray reply: %v", err)
			return
		}
		echoReply(t, st, env)
	}()

	reply, err := c.Call(context.Background(), procEcho, "still here")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if reply.Body != "still here" {
		t.Errorf("Expected %q, got %v", "still here", reply.Body)
	}
}

// TestNonReplyIgnored tests that a CALL arriving on a client connection is
// logged and dropped, not treated as a correlation candidate
func TestNonReplyIgnored(t *testing.T) {
	c, st := newTestClient(t)

	go func() {
		env := readCall(t, st)
		if env == nil {
			return
		}
		// A call message reusing the pending xid must not resolve anything
		if err := st.WriteMessage(proto.NewCall(env.Msg.Xid, 1, 1, 0), nil); err != nil {
			t.Errorf("Server failed to write call message: %v", err)
			return
		}
		echoReply(t, st, env)
	}()

	reply, err := c.Call(context.Background(), procEcho, "ok")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if reply.Body != "ok" {
		t.Errorf("Expected %q, got %v", "ok", reply.Body)
	}
}

// TestNonSuccessReply tests that a SYSTEM_ERR reply resolves the call with
// no error and no decoded body, leaving the outcome check to the caller
func TestNonSuccessReply(t *testing.T) {
	c, st := newTestClient(t)

	go func() {
		env := readCall(t, st)
		if env == nil {
			return
		}
		reply := proto.NewAcceptedReply(env.Msg.Xid, proto.MsgAccepted, proto.SystemErr)
		if err := st.WriteMessage(reply, nil); err != nil {
			t.Errorf("Server failed to write error reply: %v", err)
		}
	}()

	reply, err := c.Call(context.Background(), procEcho, "doomed")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !reply.Success() {
		t.Error("SYSTEM_ERR is still an accepted reply")
	}
	if stat := reply.Msg.Reply.Accepted.Stat; stat != proto.SystemErr {
		t.Errorf("Expected SYSTEM_ERR, got %s", stat)
	}
	if reply.Body != nil {
		t.Errorf("Expected no decoded body, got %v", reply.Body)
	}
}

// TestArgCount tests that an arity mismatch fails before anything is sent
func TestArgCount(t *testing.T) {
	connector := &testConnector{} // no connection available, must not be needed
	c := New(testProg, testVers, testProcs(), connector, common.ClientConfig{Endpoint: "pipe"})

	_, err := c.Call(context.Background(), procAdd, int32(1))
	if !errors.Is(err, ErrArgCount) {
		t.Errorf("Expected ErrArgCount, got %v", err)
	}
}

// TestContextCanceled tests that a canceled context abandons the wait and
// removes the pending entry
func TestContextCanceled(t *testing.T) {
	c, st := newTestClient(t)

	go func() {
		// Swallow the call, never reply
		readCall(t, st)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, procEcho, "nobody answers")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline, got %v", err)
	}

	if c.pending.Size() != 0 {
		t.Errorf("Pending table should be empty, has %d entries", c.pending.Size())
	}
}

// TestConnDeathFailsPending tests that all calls in flight resolve with
// ErrConnClosed when the connection dies, and that later calls fail fast
func TestConnDeathFailsPending(t *testing.T) {
	c, st := newTestClient(t)

	go func() {
		readCall(t, st)
		st.Close()
	}()

	_, err := c.Call(context.Background(), procEcho, "lost")
	if !errors.Is(err, ErrConnClosed) {
		t.Fatalf("Expected ErrConnClosed for the pending call, got %v", err)
	}

	// The dead transport is not silently re-dialed
	if _, err := c.Call(context.Background(), procEcho, "after death"); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Expected ErrConnClosed for a call after death, got %v", err)
	}
}

// TestReconnect tests that an explicit Connect after a connection death
// establishes a fresh connection
func TestReconnect(t *testing.T) {
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()
	t.Cleanup(func() {
		a1.Close()
		a2.Close()
		b1.Close()
		b2.Close()
	})

	connector := &testConnector{conns: []net.Conn{a1, b1}}
	c := New(testProg, testVers, testProcs(), connector, common.ClientConfig{Endpoint: "pipe"})
	t.Cleanup(func() { c.Close() })

	// First connection dies immediately
	if err := c.Connect(); err != nil {
		t.Fatalf("First connect failed: %v", err)
	}
	a2.Close()

	// Wait for the pump to notice
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := c.Call(context.Background(), procEcho, "probe"); errors.Is(err, ErrConnClosed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Client never noticed the dead connection")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}

	st := base.New(b2)
	go func() {
		env := readCall(t, st)
		if env == nil {
			return
		}
		echoReply(t, st, env)
	}()

	reply, err := c.Call(context.Background(), procEcho, "back")
	if err != nil {
		t.Fatalf("Call after reconnect failed: %v", err)
	}
	if reply.Body != "back" {
		t.Errorf("Expected %q, got %v", "back", reply.Body)
	}
}

// TestPackArgs tests serialization of a multi-argument procedure
func TestPackArgs(t *testing.T) {
	c := New(testProg, testVers, testProcs(), &testConnector{}, common.ClientConfig{})

	body, err := c.PackArgs(procAdd, []any{int32(3), int32(4)})
	if err != nil {
		t.Fatalf("Failed to pack arguments: %v", err)
	}

	d := xdr.NewDecoder(body)
	a, _ := d.Int32()
	b, err := d.Int32()
	if err != nil || a != 3 || b != 4 {
		t.Errorf("Wrong packed arguments: %d %d (err %v)", a, b, err)
	}
	if len(d.Remaining()) != 0 {
		t.Errorf("Unexpected trailing bytes: %v", d.Remaining())
	}
}

// TestPackArgsBadType tests that a wrong argument type surfaces the codec
// error
func TestPackArgsBadType(t *testing.T) {
	c := New(testProg, testVers, testProcs(), &testConnector{}, common.ClientConfig{})

	_, err := c.PackArgs(procAdd, []any{int32(1), "not an int"})
	if !errors.Is(err, xdr.ErrBadValue) {
		t.Errorf("Expected ErrBadValue, got %v", err)
	}
}

var _ transport.IClientConnector = (*testConnector)(nil)
