package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gonefs/gonefs/rpc/client"
	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/proc"
	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport/tcp"
	"github.com/gonefs/gonefs/rpc/xdr"
)

const (
	testProg uint32 = 0x200000AB
	testVers uint32 = 2

	procGreet uint32 = 1
	procFail  uint32 = 2
	procPanic uint32 = 3
	procSpare uint32 = 4
)

// testProcs declares one well-behaved procedure, two faulty ones, and one
// that is knowingly left unimplemented
func testProcs() proc.Table {
	return proc.Table{
		procGreet: {ID: procGreet, Name: "GREET", Args: []xdr.Codec{xdr.Int32C, xdr.StringC}, Ret: xdr.StringC},
		procFail:  {ID: procFail, Name: "FAIL", Args: nil, Ret: xdr.VoidC},
		procPanic: {ID: procPanic, Name: "PANIC", Args: nil, Ret: xdr.VoidC},
		procSpare: {ID: procSpare, Name: "SPARE", Args: nil, Ret: xdr.VoidC},
	}
}

func testHandlers() map[uint32]Handler {
	return map[uint32]Handler{
		procGreet: func(_ *ConnCtx, args []any) (any, error) {
			return strings.Repeat(args[1].(string), int(args[0].(int32))), nil
		},
		procFail: func(_ *ConnCtx, _ []any) (any, error) {
			return nil, errors.New("deliberate failure")
		},
		procPanic: func(_ *ConnCtx, _ []any) (any, error) {
			panic("deliberate panic")
		},
	}
}

func testDef() Def {
	return Def{
		Prog:          testProg,
		Vers:          testVers,
		Procs:         testProcs(),
		Handlers:      testHandlers(),
		Unimplemented: []string{"SPARE"},
	}
}

// TestConstructionValidation tests that New rejects incomplete or
// inconsistent definitions before any connection is accepted
func TestConstructionValidation(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		if _, err := New(testDef(), tcp.NewTCPServerConnector(), common.ServerConfig{}); err != nil {
			t.Errorf("Valid definition rejected: %v", err)
		}
	})

	t.Run("MissingHandler", func(t *testing.T) {
		def := testDef()
		delete(def.Handlers, procGreet)

		_, err := New(def, tcp.NewTCPServerConnector(), common.ServerConfig{})
		if !errors.Is(err, ErrIncompleteTable) {
			t.Fatalf("Expected ErrIncompleteTable, got %v", err)
		}
		if !strings.Contains(err.Error(), "GREET") {
			t.Errorf("Error should name the missing procedure: %v", err)
		}
	})

	t.Run("MissingOptOut", func(t *testing.T) {
		def := testDef()
		def.Unimplemented = nil

		_, err := New(def, tcp.NewTCPServerConnector(), common.ServerConfig{})
		if !errors.Is(err, ErrIncompleteTable) {
			t.Errorf("Expected ErrIncompleteTable without the SPARE opt-out, got %v", err)
		}
	})

	t.Run("UndeclaredHandler", func(t *testing.T) {
		def := testDef()
		def.Handlers[99] = func(_ *ConnCtx, _ []any) (any, error) { return nil, nil }

		_, err := New(def, tcp.NewTCPServerConnector(), common.ServerConfig{})
		if !errors.Is(err, ErrIncompleteTable) {
			t.Errorf("Expected ErrIncompleteTable for an undeclared handler, got %v", err)
		}
	})
}

// TestHandleProcCall tests argument decoding, positional handler invocation,
// and result encoding
func TestHandleProcCall(t *testing.T) {
	s, err := New(testDef(), tcp.NewTCPServerConnector(), common.ServerConfig{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ctx := NewConnCtx(nil)

	e := xdr.NewEncoder()
	e.Int32(3)
	e.String("ab")

	out, err := s.HandleProcCall(ctx, procGreet, e.Bytes())
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	got, err := xdr.NewDecoder(out).String()
	if err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if got != "ababab" {
		t.Errorf("Expected %q, got %q", "ababab", got)
	}
}

// TestHandleProcCallFaults tests the dispatch error cases
func TestHandleProcCallFaults(t *testing.T) {
	s, err := New(testDef(), tcp.NewTCPServerConnector(), common.ServerConfig{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ctx := NewConnCtx(nil)

	t.Run("UnknownProc", func(t *testing.T) {
		if _, err := s.HandleProcCall(ctx, 42, nil); !errors.Is(err, ErrUnknownProc) {
			t.Errorf("Expected ErrUnknownProc, got %v", err)
		}
	})

	t.Run("Unimplemented", func(t *testing.T) {
		if _, err := s.HandleProcCall(ctx, procSpare, nil); !errors.Is(err, ErrUnimplemented) {
			t.Errorf("Expected ErrUnimplemented, got %v", err)
		}
	})

	t.Run("GarbageArgs", func(t *testing.T) {
		// GREET wants int32 + string, the body holds half an int32
		if _, err := s.HandleProcCall(ctx, procGreet, []byte{0, 0}); !errors.Is(err, xdr.ErrShortBuffer) {
			t.Errorf("Expected ErrShortBuffer, got %v", err)
		}
	})

	t.Run("HandlerError", func(t *testing.T) {
		if _, err := s.HandleProcCall(ctx, procFail, nil); err == nil {
			t.Error("Expected the handler error to surface")
		}
	})
}

// TestMakeReply tests the reply header constructor
func TestMakeReply(t *testing.T) {
	msg := MakeReply(77, proto.MsgAccepted, proto.SystemErr)

	if msg.Xid != 77 || msg.Type != proto.Reply {
		t.Errorf("Wrong header: %+v", msg)
	}
	if msg.Reply.Stat != proto.MsgAccepted || msg.Reply.Accepted.Stat != proto.SystemErr {
		t.Errorf("Wrong reply body: %+v", msg.Reply)
	}
	if msg.Reply.Accepted.Verf.Flavor != proto.AuthNone {
		t.Errorf("Expected null verifier, got %+v", msg.Reply.Accepted.Verf)
	}
}

// TestConnCtx tests the per-connection state bag
func TestConnCtx(t *testing.T) {
	ctx := NewConnCtx(nil)

	if _, ok := ctx.Get("missing"); ok {
		t.Error("Get on an empty context should miss")
	}

	ctx.Set("user", "alice")
	if v, ok := ctx.Get("user"); !ok || v != "alice" {
		t.Errorf("Expected stored value, got %v (ok %v)", v, ok)
	}

	ctx.Delete("user")
	if _, ok := ctx.Get("user"); ok {
		t.Error("Value should be gone after Delete")
	}
}

// startTestServer serves the test program on an OS-assigned loopback port
// and returns a connected client
func startTestServer(t *testing.T) *client.Client {
	t.Helper()

	s, err := New(testDef(), tcp.NewTCPServerConnector(), common.ServerConfig{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go s.ServeListener(listener)
	t.Cleanup(func() { s.Close() })

	c := client.New(testProg, testVers, testProcs(), tcp.NewTCPClientConnector(), common.ClientConfig{
		Endpoint:      s.Addr().String(),
		TimeoutSecond: 5,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

// TestServeDispatch tests a successful call through the accept loop
func TestServeDispatch(t *testing.T) {
	c := startTestServer(t)

	reply, err := c.Call(context.Background(), procGreet, int32(2), "go")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !reply.Success() {
		t.Fatal("Reply should report success")
	}
	if reply.Body != "gogo" {
		t.Errorf("Expected %q, got %v", "gogo", reply.Body)
	}
}

// faultConnClosed asserts that a connection is torn down after a dispatch
// fault: an eventual call on the same client fails with ErrConnClosed
func faultConnClosed(t *testing.T, c *client.Client, procID uint32, args ...any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := c.Call(context.Background(), procID, args...)
		if errors.Is(err, client.ErrConnClosed) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Connection was not torn down, last call result: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// checkSystemErr asserts that a call resolved with an accepted SYSTEM_ERR
// reply carrying no result
func checkSystemErr(t *testing.T, reply *client.Reply, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !reply.Success() {
		t.Fatal("Error reply should still be MSG_ACCEPTED")
	}
	if stat := reply.Msg.Reply.Accepted.Stat; stat != proto.SystemErr {
		t.Errorf("Expected SYSTEM_ERR, got %s", stat)
	}
	if reply.Body != nil {
		t.Errorf("Error reply should carry no result, got %v", reply.Body)
	}
}

// TestServeDispatchFault tests that a failing handler produces exactly one
// SYSTEM_ERR reply and then tears the connection down
func TestServeDispatchFault(t *testing.T) {
	tests := map[string]uint32{
		"HandlerError":  procFail,
		"HandlerPanic":  procPanic,
		"Unimplemented": procSpare,
	}

	for name, procID := range tests {
		t.Run(name, func(t *testing.T) {
			c := startTestServer(t)

			reply, err := c.Call(context.Background(), procID)
			checkSystemErr(t, reply, err)
			faultConnClosed(t, c, procGreet, int32(1), "x")
		})
	}
}

// TestServeGarbageArgs tests that a call body the server cannot decode is a
// dispatch fault like any other. The client's table deliberately disagrees
// with the server's, so a well-formed call carries too few argument bytes.
func TestServeGarbageArgs(t *testing.T) {
	s, err := New(testDef(), tcp.NewTCPServerConnector(), common.ServerConfig{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go s.ServeListener(listener)
	t.Cleanup(func() { s.Close() })

	skewed := proc.Table{
		procGreet: {ID: procGreet, Name: "GREET", Args: nil, Ret: xdr.StringC},
	}
	c := client.New(testProg, testVers, skewed, tcp.NewTCPClientConnector(), common.ClientConfig{
		Endpoint:      s.Addr().String(),
		TimeoutSecond: 5,
	})
	t.Cleanup(func() { c.Close() })

	reply, err := c.Call(context.Background(), procGreet)
	checkSystemErr(t, reply, err)
	faultConnClosed(t, c, procGreet)
}

// TestServeSurvivesFault tests that a connection killed by a fault does not
// take the server down: a fresh connection still dispatches
func TestServeSurvivesFault(t *testing.T) {
	s, err := New(testDef(), tcp.NewTCPServerConnector(), common.ServerConfig{})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go s.ServeListener(listener)
	t.Cleanup(func() { s.Close() })

	newClient := func() *client.Client {
		c := client.New(testProg, testVers, testProcs(), tcp.NewTCPClientConnector(), common.ClientConfig{
			Endpoint:      s.Addr().String(),
			TimeoutSecond: 5,
		})
		t.Cleanup(func() { c.Close() })
		return c
	}

	first := newClient()
	if _, err := first.Call(context.Background(), procFail); err != nil {
		t.Fatalf("Fault call failed: %v", err)
	}
	faultConnClosed(t, first, procGreet, int32(1), "x")

	second := newClient()
	reply, err := second.Call(context.Background(), procGreet, int32(1), "up")
	if err != nil {
		t.Fatalf("Call on fresh connection failed: %v", err)
	}
	if reply.Body != "up" {
		t.Errorf("Expected %q, got %v", "up", reply.Body)
	}
}
