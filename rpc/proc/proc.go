// Package proc declares the procedure descriptor and program table types
// that connect an interface-compiler-produced stub layer to the RPC engine.
// A table is supplied once at client/server construction and is read-only
// for the engine's lifetime.
package proc

import (
	"sort"

	"github.com/gonefs/gonefs/rpc/xdr"
)

// Proc describes one exposed operation of an RPC program.
type Proc struct {
	// ID is the procedure number on the wire
	ID uint32
	// Name is the declared procedure name, used for the server side
	// completeness check and in log messages
	Name string
	// Args holds one codec per argument, in declaration order
	Args []xdr.Codec
	// Ret is the codec for the return value
	Ret xdr.Codec
}

// Table maps procedure ids to their descriptors.
type Table map[uint32]Proc

// Names returns all declared procedure names, sorted for stable output.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for _, p := range t {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
