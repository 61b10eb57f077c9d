package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport"
	"github.com/gonefs/gonefs/rpc/xdr"
)

// lastFragment is bit 31 of the record-marking length word. The low 31 bits
// hold the fragment's byte length.
const lastFragment = uint32(1) << 31

// Transport implements transport.IRPCTransport over a net.Conn using the
// record-marking framing scheme of RFC 5531 section 11.
//
// The read side is single-consumer: exactly one goroutine may call
// ReadMessage. Writes are internally serialized so whole messages from
// concurrent writers never interleave on the wire.
type Transport struct {
	conn net.Conn

	// write path
	writeMu sync.Mutex

	// read path. A poll deadline can fire while the length word of the
	// next record is partially read; the partial word is kept here so the
	// next ReadMessage call resumes instead of losing stream sync.
	wordBuf [4]byte
	wordLen int

	closed    atomic.Bool // Close was called
	broken    atomic.Bool // stream hit EOF or a fatal error
	closeOnce sync.Once
	closeErr  error
}

var _ transport.IRPCTransport = (*Transport)(nil)

// New wraps conn in a record-marking framed transport
func New(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCTransport)
// --------------------------------------------------------------------------

func (t *Transport) WriteMessage(msg *proto.Message, body []byte) error {
	if t.Closed() {
		return transport.ErrClosed
	}

	// Serialize the header
	enc := xdr.NewEncoder()
	if err := msg.Pack(enc); err != nil {
		return err
	}
	header := enc.Bytes()

	total := len(header) + len(body)
	if total > transport.MaxMessageBytes {
		return transport.ErrMessageTooLarge
	}

	// Length word: low 31 bits hold the size, bit 31 marks the record as
	// the final (and only) fragment this engine ever emits
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], uint32(total)|lastFragment)

	// The whole record goes out in one writev so concurrent messages
	// cannot interleave
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	// A zero-length buffer must not reach the writev: net.Pipe blocks an
	// empty Write until the peer reads, deadlocking in-memory transports.
	b := net.Buffers{word[:], header}
	if len(body) > 0 {
		b = append(b, body)
	}
	if _, err := b.WriteTo(t.conn); err != nil {
		t.broken.Store(true)
		return fmt.Errorf("transport: write failed: %w", err)
	}
	return nil
}

func (t *Transport) ReadMessage() (*proto.Envelope, error) {
	if t.Closed() {
		return nil, transport.ErrClosed
	}

	var record bytes.Buffer
	total := 0

	for {
		atRecordStart := record.Len() == 0

		word, err := t.readLengthWord()
		if err != nil {
			// A poll timeout before the record completed its first
			// fragment is resumable, everything else is fatal
			if isTimeout(err) && atRecordStart {
				return nil, err
			}
			return nil, t.failRead(err, atRecordStart && t.wordLen == 0)
		}

		if atRecordStart {
			// The record has started. Clear any poll deadline so
			// reassembly cannot be cut short mid-record.
			_ = t.conn.SetReadDeadline(time.Time{})
		}

		last := word&lastFragment != 0
		fragLen := int(word &^ lastFragment)

		total += fragLen
		if total > transport.MaxMessageBytes {
			t.broken.Store(true)
			return nil, fmt.Errorf("%w: %d bytes", transport.ErrMessageTooLarge, total)
		}

		frag := make([]byte, fragLen)
		if _, err := io.ReadFull(t.conn, frag); err != nil {
			return nil, t.failRead(err, false)
		}
		record.Write(frag)

		if last {
			break
		}
	}

	dec := xdr.NewDecoder(record.Bytes())
	msg, err := proto.ParseMessage(dec)
	if err != nil {
		return nil, err
	}
	return &proto.Envelope{Msg: msg, Body: dec.Remaining()}, nil
}

func (t *Transport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *Transport) Close() error {
	t.closed.Store(true)
	t.closeOnce.Do(func() {
		// Graceful half-close where the connection supports one
		// (signals end-of-output to the peer before tearing down)
		type closeWriter interface{ CloseWrite() error }
		if cw, ok := t.conn.(closeWriter); ok {
			_ = cw.CloseWrite()
		}
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *Transport) Closed() bool {
	return t.closed.Load() || t.broken.Load()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readLengthWord reads the 4-byte record-marking word, resuming a partial
// read left over from an interrupted poll
func (t *Transport) readLengthWord() (uint32, error) {
	for t.wordLen < 4 {
		n, err := t.conn.Read(t.wordBuf[t.wordLen:4])
		t.wordLen += n
		if err != nil {
			return 0, err
		}
	}
	t.wordLen = 0
	return binary.BigEndian.Uint32(t.wordBuf[:]), nil
}

// failRead marks the stream broken and maps the raw error: a clean EOF at a
// record boundary becomes ErrClosed, an EOF inside a record becomes an
// unexpected-EOF error, anything else is wrapped as-is
func (t *Transport) failRead(err error, atBoundary bool) error {
	t.broken.Store(true)
	if err == io.EOF {
		if atBoundary {
			return transport.ErrClosed
		}
		return fmt.Errorf("transport: stream ended mid-message: %w", io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("transport: read failed: %w", err)
}

// isTimeout reports whether err is a deadline hit
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
