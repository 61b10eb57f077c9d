package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport"
	"github.com/gonefs/gonefs/rpc/transport/base"
)

// pollInterval bounds each blocking read so a connection loop notices a
// transport that closed underneath it. It is a liveness poll, not a
// protocol timeout.
const pollInterval = time.Second

// --------------------------------------------------------------------------
// Accept loop
// --------------------------------------------------------------------------

// Serve listens on the configured endpoint and accepts connections until
// Close is called. Blocks.
func (s *Server) Serve() error {
	listener, err := s.connector.Listen(s.config)
	if err != nil {
		return fmt.Errorf("server: failed to listen: %w", err)
	}
	return s.ServeListener(listener)
}

// ServeListener accepts connections from an existing listener. Blocks.
func (s *Server) ServeListener(listener net.Listener) error {
	s.listener = listener
	close(s.listenerCh)

	Logger.Infof("serving program %d v%d on %s (%s)",
		s.def.Prog, s.def.Vers, listener.Addr(), s.connector.GetName())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			Logger.Errorf("accept error: %v", err)
			continue
		}

		if err := s.connector.UpgradeConnection(conn, s.config.Transport); err != nil {
			Logger.Warningf("failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		go s.handleConnection(conn)
	}
}

// Addr returns the listen address, blocking until the listener is up. Handy
// when serving on an OS-assigned port.
func (s *Server) Addr() net.Addr {
	<-s.listenerCh
	return s.listener.Addr()
}

// Close stops the accept loop. Connections already running serve until
// their streams end.
func (s *Server) Close() error {
	s.closing.Store(true)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Per-connection loop
// --------------------------------------------------------------------------

// handleConnection reads framed messages and dispatches calls until the
// stream ends or a dispatch fault tears the connection down.
func (s *Server) handleConnection(conn net.Conn) {
	t := base.New(conn)
	defer t.Close()

	ctx := NewConnCtx(conn.RemoteAddr())
	connsAccepted.Inc()
	Logger.Debugf("connection from %s", conn.RemoteAddr())

	for !t.Closed() {
		_ = t.SetReadDeadline(time.Now().Add(pollInterval))

		env, err := t.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
				Logger.Debugf("connection from %s closed", conn.RemoteAddr())
			} else {
				Logger.Errorf("read on connection from %s failed: %v", conn.RemoteAddr(), err)
			}
			return
		}

		// A non-call received by a server is a confused peer, not a
		// broken channel
		if env.Msg.Type != proto.Call {
			Logger.Warningf("ignoring %s message xid %d from %s", env.Msg.Type, env.Msg.Xid, conn.RemoteAddr())
			continue
		}

		if err := s.dispatch(t, ctx, env); err != nil {
			// One bad call ends the connection: reply once with a
			// system error, then tear down
			dispatchErrors.Inc()
			Logger.Errorf("dispatch of proc %d xid %d from %s failed: %v",
				env.Msg.Call.Proc, env.Msg.Xid, conn.RemoteAddr(), err)

			reply := MakeReply(env.Msg.Xid, proto.MsgAccepted, proto.SystemErr)
			if werr := t.WriteMessage(reply, nil); werr != nil {
				Logger.Errorf("failed to send error reply to %s: %v", conn.RemoteAddr(), werr)
			}
			return
		}
	}
}

// dispatch runs one call through the handler and writes the success reply.
// A panicking handler is converted into a dispatch error so one connection
// cannot take the whole process down.
func (s *Server) dispatch(t transport.IRPCTransport, ctx *ConnCtx, env *proto.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("server: handler panic: %v", r)
		}
	}()

	replyBody, err := s.HandleProcCall(ctx, env.Msg.Call.Proc, env.Body)
	if err != nil {
		return err
	}
	callsDispatched.Inc()

	reply := MakeReply(env.Msg.Xid, proto.MsgAccepted, proto.Success)
	return t.WriteMessage(reply, replyBody)
}
