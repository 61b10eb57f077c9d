package clockproc

import (
	"time"

	"github.com/gonefs/gonefs/rpc/proc"
	"github.com/gonefs/gonefs/rpc/server"
	"github.com/gonefs/gonefs/rpc/xdr"
)

// Program identity. The number sits in the transient range of RFC 5531.
const (
	Program uint32 = 0x20000001
	Version uint32 = 1
)

// Procedure numbers
const (
	ProcNull  uint32 = 0
	ProcNow   uint32 = 1
	ProcEcho  uint32 = 2
	ProcAdd   uint32 = 3
	ProcBench uint32 = 4
)

// Procs returns the procedure table an interface compiler would emit for
// this program.
func Procs() proc.Table {
	return proc.Table{
		ProcNull:  {ID: ProcNull, Name: "NULL", Args: nil, Ret: xdr.VoidC},
		ProcNow:   {ID: ProcNow, Name: "NOW", Args: nil, Ret: xdr.StringC},
		ProcEcho:  {ID: ProcEcho, Name: "ECHO", Args: []xdr.Codec{xdr.StringC}, Ret: xdr.StringC},
		ProcAdd:   {ID: ProcAdd, Name: "ADD", Args: []xdr.Codec{xdr.Int32C, xdr.Int32C}, Ret: xdr.Int32C},
		ProcBench: {ID: ProcBench, Name: "BENCH", Args: []xdr.Codec{xdr.OpaqueC}, Ret: xdr.OpaqueC},
	}
}

// Handlers returns the server-side implementation of the program.
func Handlers() map[uint32]server.Handler {
	return map[uint32]server.Handler{
		ProcNull: func(_ *server.ConnCtx, _ []any) (any, error) {
			return nil, nil
		},
		ProcNow: func(_ *server.ConnCtx, _ []any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339Nano), nil
		},
		ProcEcho: func(_ *server.ConnCtx, args []any) (any, error) {
			return args[0].(string), nil
		},
		ProcAdd: func(_ *server.ConnCtx, args []any) (any, error) {
			return args[0].(int32) + args[1].(int32), nil
		},
	}
}

// Unimplemented lists the declared procedures this implementation knowingly
// does not serve.
func Unimplemented() []string {
	return []string{"BENCH"}
}

// Def assembles the full server definition for the program.
func Def() server.Def {
	return server.Def{
		Prog:          Program,
		Vers:          Version,
		Procs:         Procs(),
		Handlers:      Handlers(),
		Unimplemented: Unimplemented(),
	}
}
