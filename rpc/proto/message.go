package proto

import (
	"errors"
	"fmt"

	"github.com/gonefs/gonefs/rpc/xdr"
)

// RPCVersion is the only RPC protocol version this engine speaks.
const RPCVersion = 2

// ErrBadMessage is returned when a received header cannot be parsed.
var ErrBadMessage = errors.New("proto: malformed rpc message")

// --------------------------------------------------------------------------
// Enumerations (RFC 5531 section 9)
// --------------------------------------------------------------------------

// MsgType distinguishes call and reply messages.
type MsgType uint32

const (
	Call  MsgType = 0
	Reply MsgType = 1
)

// String returns the string representation of a MsgType.
func (t MsgType) String() string {
	switch t {
	case Call:
		return "CALL"
	case Reply:
		return "REPLY"
	default:
		return fmt.Sprintf("MSGTYPE(%d)", uint32(t))
	}
}

// AuthFlavor identifies an authentication mechanism.
type AuthFlavor uint32

const (
	AuthNone AuthFlavor = 0
	AuthSys  AuthFlavor = 1
)

// ReplyStat reports whether the remote accepted or rejected a call.
type ReplyStat uint32

const (
	MsgAccepted ReplyStat = 0
	MsgDenied   ReplyStat = 1
)

// AcceptStat is the dispatch outcome of an accepted call.
type AcceptStat uint32

const (
	Success      AcceptStat = 0
	ProgUnavail  AcceptStat = 1
	ProgMismatch AcceptStat = 2
	ProcUnavail  AcceptStat = 3
	GarbageArgs  AcceptStat = 4
	SystemErr    AcceptStat = 5
)

// String returns the string representation of an AcceptStat.
func (s AcceptStat) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case ProgUnavail:
		return "PROG_UNAVAIL"
	case ProgMismatch:
		return "PROG_MISMATCH"
	case ProcUnavail:
		return "PROC_UNAVAIL"
	case GarbageArgs:
		return "GARBAGE_ARGS"
	case SystemErr:
		return "SYSTEM_ERR"
	default:
		return fmt.Sprintf("ACCEPTSTAT(%d)", uint32(s))
	}
}

// RejectStat is the reason a call was denied.
type RejectStat uint32

const (
	RPCMismatch RejectStat = 0
	AuthError   RejectStat = 1
)

// --------------------------------------------------------------------------
// Message structures
// --------------------------------------------------------------------------

// OpaqueAuth is a credential or verifier. The engine only ever produces
// the AUTH_NONE flavor with an empty body.
type OpaqueAuth struct {
	Flavor AuthFlavor
	Body   []byte
}

// NullAuth returns the no-authentication credential/verifier.
func NullAuth() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNone}
}

// CallBody is the header of a CALL message.
type CallBody struct {
	RPCVers uint32
	Prog    uint32
	Vers    uint32
	Proc    uint32
	Cred    OpaqueAuth
	Verf    OpaqueAuth
}

// MismatchInfo carries the supported version range of a PROG_MISMATCH or
// RPC_MISMATCH reply.
type MismatchInfo struct {
	Low  uint32
	High uint32
}

// AcceptedReply is the body of a reply with stat MSG_ACCEPTED.
type AcceptedReply struct {
	Verf     OpaqueAuth
	Stat     AcceptStat
	Mismatch MismatchInfo // set only for PROG_MISMATCH
}

// RejectedReply is the body of a reply with stat MSG_DENIED.
type RejectedReply struct {
	Stat     RejectStat
	Mismatch MismatchInfo // set only for RPC_MISMATCH
	AuthStat uint32       // set only for AUTH_ERROR
}

// ReplyBody is the header of a REPLY message. Exactly one of Accepted and
// Rejected is non-nil, matching Stat.
type ReplyBody struct {
	Stat     ReplyStat
	Accepted *AcceptedReply
	Rejected *RejectedReply
}

// Message is a parsed RPC message header. Exactly one of Call and Reply is
// non-nil, matching Type. The payload bytes that follow the header on the
// wire are carried separately (see Envelope).
type Message struct {
	Xid   uint32
	Type  MsgType
	Call  *CallBody
	Reply *ReplyBody
}

// Envelope pairs a parsed header with its unparsed payload bytes: packed
// call arguments for a CALL, packed results for an accepted REPLY.
type Envelope struct {
	Msg  *Message
	Body []byte
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// NewCall builds a CALL message with RPC version 2 and null
// credential/verifier.
func NewCall(xid, prog, vers, procID uint32) *Message {
	return &Message{
		Xid:  xid,
		Type: Call,
		Call: &CallBody{
			RPCVers: RPCVersion,
			Prog:    prog,
			Vers:    vers,
			Proc:    procID,
			Cred:    NullAuth(),
			Verf:    NullAuth(),
		},
	}
}

// NewAcceptedReply builds a REPLY message with the given acceptance status,
// dispatch status, and a null verifier.
func NewAcceptedReply(xid uint32, stat ReplyStat, acceptStat AcceptStat) *Message {
	return &Message{
		Xid:  xid,
		Type: Reply,
		Reply: &ReplyBody{
			Stat: stat,
			Accepted: &AcceptedReply{
				Verf: NullAuth(),
				Stat: acceptStat,
			},
		},
	}
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Success reports whether a reply was accepted by the remote side, i.e. the
// call reached and was processed by the peer's dispatch layer. It says
// nothing about the procedure's own application-level outcome.
//
// Calling Success on a non-reply message is a programming error and panics.
func (m *Message) Success() bool {
	if m.Type != Reply || m.Reply == nil {
		panic("proto: Success called on a non-reply message")
	}
	return m.Reply.Stat == MsgAccepted
}

// --------------------------------------------------------------------------
// XDR pack/unpack
// --------------------------------------------------------------------------

func (a *OpaqueAuth) pack(e *xdr.Encoder) {
	e.Uint32(uint32(a.Flavor))
	e.Opaque(a.Body)
}

func unpackAuth(d *xdr.Decoder) (OpaqueAuth, error) {
	flavor, err := d.Uint32()
	if err != nil {
		return OpaqueAuth{}, err
	}
	body, err := d.Opaque()
	if err != nil {
		return OpaqueAuth{}, err
	}
	return OpaqueAuth{Flavor: AuthFlavor(flavor), Body: body}, nil
}

// Pack serializes the message header into e.
func (m *Message) Pack(e *xdr.Encoder) error {
	e.Uint32(m.Xid)
	e.Uint32(uint32(m.Type))

	switch m.Type {
	case Call:
		if m.Call == nil {
			return fmt.Errorf("%w: call message without call body", ErrBadMessage)
		}
		c := m.Call
		e.Uint32(c.RPCVers)
		e.Uint32(c.Prog)
		e.Uint32(c.Vers)
		e.Uint32(c.Proc)
		c.Cred.pack(e)
		c.Verf.pack(e)

	case Reply:
		if m.Reply == nil {
			return fmt.Errorf("%w: reply message without reply body", ErrBadMessage)
		}
		r := m.Reply
		e.Uint32(uint32(r.Stat))
		switch r.Stat {
		case MsgAccepted:
			if r.Accepted == nil {
				return fmt.Errorf("%w: accepted reply without body", ErrBadMessage)
			}
			r.Accepted.Verf.pack(e)
			e.Uint32(uint32(r.Accepted.Stat))
			if r.Accepted.Stat == ProgMismatch {
				e.Uint32(r.Accepted.Mismatch.Low)
				e.Uint32(r.Accepted.Mismatch.High)
			}
		case MsgDenied:
			if r.Rejected == nil {
				return fmt.Errorf("%w: denied reply without body", ErrBadMessage)
			}
			e.Uint32(uint32(r.Rejected.Stat))
			switch r.Rejected.Stat {
			case RPCMismatch:
				e.Uint32(r.Rejected.Mismatch.Low)
				e.Uint32(r.Rejected.Mismatch.High)
			case AuthError:
				e.Uint32(r.Rejected.AuthStat)
			default:
				return fmt.Errorf("%w: unknown reject stat %d", ErrBadMessage, r.Rejected.Stat)
			}
		default:
			return fmt.Errorf("%w: unknown reply stat %d", ErrBadMessage, r.Stat)
		}

	default:
		return fmt.Errorf("%w: unknown message type %d", ErrBadMessage, m.Type)
	}

	return nil
}

// ParseMessage reads one message header from d. The decoder's cursor is left
// at the first payload byte, so d.Remaining() yields the message body.
func ParseMessage(d *xdr.Decoder) (*Message, error) {
	xid, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	mtype, err := d.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	msg := &Message{Xid: xid, Type: MsgType(mtype)}

	switch msg.Type {
	case Call:
		c := &CallBody{}
		for _, dst := range []*uint32{&c.RPCVers, &c.Prog, &c.Vers, &c.Proc} {
			if *dst, err = d.Uint32(); err != nil {
				return nil, fmt.Errorf("%w: truncated call body: %v", ErrBadMessage, err)
			}
		}
		if c.Cred, err = unpackAuth(d); err != nil {
			return nil, fmt.Errorf("%w: bad credential: %v", ErrBadMessage, err)
		}
		if c.Verf, err = unpackAuth(d); err != nil {
			return nil, fmt.Errorf("%w: bad verifier: %v", ErrBadMessage, err)
		}
		msg.Call = c

	case Reply:
		stat, err := d.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated reply body: %v", ErrBadMessage, err)
		}
		r := &ReplyBody{Stat: ReplyStat(stat)}
		switch r.Stat {
		case MsgAccepted:
			a := &AcceptedReply{}
			if a.Verf, err = unpackAuth(d); err != nil {
				return nil, fmt.Errorf("%w: bad verifier: %v", ErrBadMessage, err)
			}
			astat, err := d.Uint32()
			if err != nil {
				return nil, fmt.Errorf("%w: truncated accept stat: %v", ErrBadMessage, err)
			}
			a.Stat = AcceptStat(astat)
			if a.Stat == ProgMismatch {
				if a.Mismatch.Low, err = d.Uint32(); err != nil {
					return nil, fmt.Errorf("%w: truncated mismatch info: %v", ErrBadMessage, err)
				}
				if a.Mismatch.High, err = d.Uint32(); err != nil {
					return nil, fmt.Errorf("%w: truncated mismatch info: %v", ErrBadMessage, err)
				}
			}
			r.Accepted = a
		case MsgDenied:
			rej := &RejectedReply{}
			rstat, err := d.Uint32()
			if err != nil {
				return nil, fmt.Errorf("%w: truncated reject stat: %v", ErrBadMessage, err)
			}
			rej.Stat = RejectStat(rstat)
			switch rej.Stat {
			case RPCMismatch:
				if rej.Mismatch.Low, err = d.Uint32(); err != nil {
					return nil, fmt.Errorf("%w: truncated mismatch info: %v", ErrBadMessage, err)
				}
				if rej.Mismatch.High, err = d.Uint32(); err != nil {
					return nil, fmt.Errorf("%w: truncated mismatch info: %v", ErrBadMessage, err)
				}
			case AuthError:
				if rej.AuthStat, err = d.Uint32(); err != nil {
					return nil, fmt.Errorf("%w: truncated auth stat: %v", ErrBadMessage, err)
				}
			default:
				return nil, fmt.Errorf("%w: unknown reject stat %d", ErrBadMessage, rej.Stat)
			}
			r.Rejected = rej
		default:
			return nil, fmt.Errorf("%w: unknown reply stat %d", ErrBadMessage, r.Stat)
		}
		msg.Reply = r

	default:
		return nil, fmt.Errorf("%w: unknown message type %d", ErrBadMessage, mtype)
	}

	return msg, nil
}
