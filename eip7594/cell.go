// Package eip7594 implements the data-availability-sampling compute surface:
// deriving the extended-blob cells and their KZG opening proofs from a blob.
//
// Cells live in flat byte buffers sized for the whole extended blob. The
// accessors address individual cells through the stride recorded on the
// settings, so callers that persist snapshots and callers that populate
// settings in-process index identically.
package eip7594

import (
	"errors"

	"github.com/eth2030/blobkzg/setup"
)

var (
	// ErrBadArgs reports a malformed input: wrong buffer length, missing
	// output, or an unpopulated setup.
	ErrBadArgs = errors.New("eip7594: bad arguments")
)

// CellAt returns the read-only cell at index inside the flat cells buffer.
// The caller guarantees cells holds at least (index+1) cells of the stride
// recorded on s; out-of-range indices are a caller bug, not a checked error.
func CellAt(cells []byte, index uint64, s *setup.Settings) []byte {
	start := index * s.BytesPerCell
	return cells[start : start+s.BytesPerCell : start+s.BytesPerCell]
}

// MutCellAt returns the writable cell at index inside the flat cells buffer.
// Same contract as CellAt.
func MutCellAt(cells []byte, index uint64, s *setup.Settings) []byte {
	start := index * s.BytesPerCell
	return cells[start : start+s.BytesPerCell : start+s.BytesPerCell]
}
