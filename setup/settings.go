// Package setup owns the KZG trusted setup: the precomputed roots of unity,
// G1/G2 powers, FK20 coset-FFT columns and optional MSM tables that every
// cell and proof computation reads. The package covers the full lifecycle
// (initialize, populate, free) and a platform-stamped binary snapshot format
// for fast reloads on the same host.
//
// A populated Settings is read-only for the lifetime of any pipeline
// invocation and may be read concurrently; it must not be re-populated or
// freed while a pipeline call holds a reference to it.
package setup

import (
	"errors"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/eth2030/blobkzg/fk20"
	"github.com/eth2030/blobkzg/params"
)

// Settings errors. Input-shaped failures wrap ErrBadArgs; broken internal
// invariants wrap ErrInternal.
var (
	ErrBadArgs  = errors.New("setup: bad arguments")
	ErrInternal = errors.New("setup: internal error")

	ErrNotPopulated = fmt.Errorf("%w: trusted setup not populated", ErrBadArgs)
)

// Settings is the trusted setup: every array the computation pipeline needs,
// with ownership rooted here. After Init (or Free) all sequences are nil and
// all scalars zero; after a successful populate path (GenerateInsecure,
// LoadJSON, Deserialize) every sequence is non-nil with its protocol-fixed
// length. No partially-populated Settings is ever observable outside a
// failed load.
type Settings struct {
	// RootsOfUnity are the powers of the extended-domain generator,
	// FieldElementsPerExtBlob+1 entries; the final entry wraps back to one.
	RootsOfUnity []fr.Element

	// BRPRootsOfUnity are the first FieldElementsPerExtBlob roots in
	// bit-reversed order.
	BRPRootsOfUnity []fr.Element

	// ReverseRootsOfUnity are the inverse-direction roots,
	// FieldElementsPerExtBlob+1 entries.
	ReverseRootsOfUnity []fr.Element

	// G1ValuesMonomial holds [s^i]G1 for i < FieldElementsPerBlob.
	G1ValuesMonomial []bls12381.G1Affine

	// G1ValuesLagrangeBRP holds the Lagrange-basis G1 points in bit-reversed
	// order, FieldElementsPerBlob entries.
	G1ValuesLagrangeBRP []bls12381.G1Affine

	// G2ValuesMonomial holds [s^i]G2 for i < NumG2Points.
	G2ValuesMonomial []bls12381.G2Affine

	// XExtFFTColumns is the precomputed FK20 coset-FFT basis:
	// CellsPerExtBlob rows of FieldElementsPerCell points each.
	XExtFFTColumns [][]bls12381.G1Affine

	// Tables are optional per-row windowed-MSM tables, present iff
	// WBits != 0. Each entry is TableSize bytes.
	Tables [][]byte

	// WBits is the MSM fixed-window width; zero disables the tables.
	WBits uint64

	// ScratchSize is the MSM working-memory sizing hint for the tables.
	ScratchSize uint64

	// TableSize is the byte length of each Tables entry.
	TableSize uint64

	// FieldElementsPerCell and BytesPerCell give the runtime cell stride.
	// They are zero on an unpopulated Settings; cell addressing is only
	// defined once a populate path has set them.
	FieldElementsPerCell uint64
	BytesPerCell         uint64

	// rowTables is the decoded form of Tables, rebuilt by every populate
	// path that carries tables. The FK20 row MSM consumes it directly.
	rowTables *fk20.RowTables
}

// New returns a Settings in the initialized (empty) state.
func New() *Settings {
	s := new(Settings)
	s.Init()
	return s
}

// Init resets every owned sequence to nil and every scalar to zero. It
// performs no allocation and never fails. A freshly initialized Settings can
// always be passed to Free.
func (s *Settings) Init() {
	s.RootsOfUnity = nil
	s.BRPRootsOfUnity = nil
	s.ReverseRootsOfUnity = nil
	s.G1ValuesMonomial = nil
	s.G1ValuesLagrangeBRP = nil
	s.G2ValuesMonomial = nil
	s.XExtFFTColumns = nil
	s.Tables = nil
	s.WBits = 0
	s.ScratchSize = 0
	s.TableSize = 0
	s.FieldElementsPerCell = 0
	s.BytesPerCell = 0
	s.rowTables = nil
}

// Free releases every owned sequence and restores the Init state. Nested
// sequences are detached element-by-element before the outer sequence so a
// caller-retained inner slice cannot pin the whole structure. Free tolerates
// a partially- or never-populated Settings, is idempotent, and is a no-op on
// a nil receiver.
func (s *Settings) Free() {
	if s == nil {
		return
	}
	if s.XExtFFTColumns != nil {
		for i := range s.XExtFFTColumns {
			s.XExtFFTColumns[i] = nil
		}
	}
	if s.Tables != nil {
		for i := range s.Tables {
			s.Tables[i] = nil
		}
	}
	s.Init()
}

// IsPopulated reports whether every sequence required by the pipeline is
// present with its expected length and the tables invariant (Tables non-nil
// iff WBits != 0) holds.
func (s *Settings) IsPopulated() bool {
	if s == nil {
		return false
	}
	if len(s.RootsOfUnity) != params.FieldElementsPerExtBlob+1 ||
		len(s.BRPRootsOfUnity) != params.FieldElementsPerExtBlob ||
		len(s.ReverseRootsOfUnity) != params.FieldElementsPerExtBlob+1 ||
		len(s.G1ValuesMonomial) != params.NumG1Points ||
		len(s.G1ValuesLagrangeBRP) != params.NumG1Points ||
		len(s.G2ValuesMonomial) != params.NumG2Points ||
		len(s.XExtFFTColumns) != params.CellsPerExtBlob {
		return false
	}
	for i := range s.XExtFFTColumns {
		if len(s.XExtFFTColumns[i]) != params.FieldElementsPerCell {
			return false
		}
	}
	if (s.WBits != 0) != (s.Tables != nil) {
		return false
	}
	if (s.WBits != 0) != (s.rowTables != nil) {
		return false
	}
	if s.Tables != nil {
		if len(s.Tables) != params.CellsPerExtBlob {
			return false
		}
		for i := range s.Tables {
			if uint64(len(s.Tables[i])) != s.TableSize {
				return false
			}
		}
	}
	return s.FieldElementsPerCell == params.FieldElementsPerCell &&
		s.BytesPerCell == params.BytesPerCell
}

// RowTables returns the decoded windowed-MSM precompute, or nil when the
// setup carries no tables. The returned structure is read-only.
func (s *Settings) RowTables() *fk20.RowTables {
	return s.rowTables
}

// setCellStride assigns the runtime cell addressing parameters. Every
// populate path ends here.
func (s *Settings) setCellStride() {
	s.FieldElementsPerCell = params.FieldElementsPerCell
	s.BytesPerCell = params.BytesPerCell
}

// allocSequences allocates every fixed-length sequence except Tables. It is
// the single populate-path allocation helper; the loaders fill the returned
// storage in place.
func (s *Settings) allocSequences() {
	s.RootsOfUnity = make([]fr.Element, params.FieldElementsPerExtBlob+1)
	s.BRPRootsOfUnity = make([]fr.Element, params.FieldElementsPerExtBlob)
	s.ReverseRootsOfUnity = make([]fr.Element, params.FieldElementsPerExtBlob+1)
	s.G1ValuesMonomial = make([]bls12381.G1Affine, params.NumG1Points)
	s.G1ValuesLagrangeBRP = make([]bls12381.G1Affine, params.NumG1Points)
	s.G2ValuesMonomial = make([]bls12381.G2Affine, params.NumG2Points)
	s.XExtFFTColumns = make([][]bls12381.G1Affine, params.CellsPerExtBlob)
	for i := range s.XExtFFTColumns {
		s.XExtFFTColumns[i] = make([]bls12381.G1Affine, params.FieldElementsPerCell)
	}
}
