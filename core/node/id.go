package node

import "fmt"

// ID uniquely identifies a node within a graph.
type ID uint32

// String renders id as an 8-digit zero-padded hex string.
func (id ID) String() string {
	return fmt.Sprintf("%08x", uint32(id))
}
