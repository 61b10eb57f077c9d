package server

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/proc"
	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport"
	"github.com/gonefs/gonefs/rpc/xdr"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

var (
	// ErrIncompleteTable fails server construction when a declared
	// procedure has neither a handler nor an unimplemented opt-out.
	ErrIncompleteTable = errors.New("server: procedure table incomplete")

	// ErrUnknownProc is returned when a call names a procedure id the
	// table does not declare.
	ErrUnknownProc = errors.New("server: unknown procedure")

	// ErrUnimplemented is returned when a call reaches a procedure that
	// was deliberately left unimplemented.
	ErrUnimplemented = errors.New("server: procedure not implemented")
)

var (
	connsAccepted   = metrics.NewCounter("rpc_server_connections_total")
	callsDispatched = metrics.NewCounter("rpc_server_calls_dispatched_total")
	dispatchErrors  = metrics.NewCounter("rpc_server_dispatch_errors_total")
)

// --------------------------------------------------------------------------
// Server definition
// --------------------------------------------------------------------------

// Handler implements one procedure. It receives the decoded arguments in
// declaration order and returns a value encodable by the procedure's
// return codec.
type Handler func(ctx *ConnCtx, args []any) (any, error)

// Def declares one RPC program: its identity, its procedure table, and the
// handlers bound to it. Procedures a program deliberately does not serve
// are opted out by name via Unimplemented; everything else must have a
// handler or construction fails.
type Def struct {
	Prog uint32
	Vers uint32

	// Procs is the table produced by the stub layer, read-only
	Procs proc.Table

	// Handlers binds procedure ids to their implementations
	Handlers map[uint32]Handler

	// Unimplemented lists declared procedure names that knowingly have
	// no handler
	Unimplemented []string
}

// Server dispatches incoming calls for one program. It is safe for use by
// any number of connection loops; the procedure table and handler table are
// read-only after construction.
type Server struct {
	def       Def
	config    common.ServerConfig
	connector transport.IServerConnector

	listener   net.Listener
	listenerCh chan struct{} // closed once the listener is up, see Addr
	closing    atomic.Bool
}

// New validates the definition and creates a server. Validation is
// structural and happens before any connection is accepted: every declared
// procedure needs a handler or an explicit opt-out, and every handler must
// belong to a declared procedure.
func New(def Def, connector transport.IServerConnector, config common.ServerConfig) (*Server, error) {
	optedOut := make(map[string]bool, len(def.Unimplemented))
	for _, name := range def.Unimplemented {
		optedOut[name] = true
	}

	var missing []string
	for id, p := range def.Procs {
		if _, ok := def.Handlers[id]; ok {
			continue
		}
		if optedOut[p.Name] {
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing handlers for %s", ErrIncompleteTable, strings.Join(missing, ", "))
	}

	for id := range def.Handlers {
		if _, ok := def.Procs[id]; !ok {
			return nil, fmt.Errorf("%w: handler bound to undeclared procedure %d", ErrIncompleteTable, id)
		}
	}

	return &Server{
		def:        def,
		config:     config,
		connector:  connector,
		listenerCh: make(chan struct{}),
	}, nil
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// HandleProcCall decodes the packed call arguments, invokes the bound
// handler positionally, and encodes its return value. The handler runs to
// completion before a reply is produced.
func (s *Server) HandleProcCall(ctx *ConnCtx, procID uint32, callBody []byte) ([]byte, error) {
	p, ok := s.def.Procs[procID]
	if !ok {
		// Cannot happen for a statically validated table, but the id
		// comes off the wire
		return nil, fmt.Errorf("%w: %d", ErrUnknownProc, procID)
	}
	handler, ok := s.def.Handlers[procID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnimplemented, p.Name)
	}

	dec := xdr.NewDecoder(callBody)
	args := make([]any, len(p.Args))
	for i, codec := range p.Args {
		v, err := codec.Unpack(dec)
		if err != nil {
			return nil, fmt.Errorf("server: %s argument %d: %w", p.Name, i, err)
		}
		args[i] = v
	}

	rv, err := handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("server: %s handler: %w", p.Name, err)
	}

	enc := xdr.NewEncoder()
	if err := p.Ret.Pack(enc, rv); err != nil {
		return nil, fmt.Errorf("server: %s result: %w", p.Name, err)
	}
	return enc.Bytes(), nil
}

// MakeReply builds a reply header carrying the given transaction id,
// acceptance status and dispatch detail, with a null verifier.
func MakeReply(xid uint32, stat proto.ReplyStat, acceptStat proto.AcceptStat) *proto.Message {
	return proto.NewAcceptedReply(xid, stat, acceptStat)
}
