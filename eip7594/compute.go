package eip7594

import (
	"fmt"

	"github.com/eth2030/blobkzg/accel"
	"github.com/eth2030/blobkzg/bitrev"
	"github.com/eth2030/blobkzg/blob"
	"github.com/eth2030/blobkzg/fk20"
	"github.com/eth2030/blobkzg/params"
	"github.com/eth2030/blobkzg/setup"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// ComputeCellsAndKZGProofs computes the extended-blob cells and their KZG
// opening proofs for one blob. cells and proofs are caller-allocated flat
// output buffers; either may be nil to skip that output, but not both. A nil
// backend uses the process accelerator, falling back to the CPU backend.
//
// cells receives CellsPerExtBlob cells of BytesPerCell bytes, proofs
// receives CellsPerExtBlob compressed G1 points of BytesPerProof bytes, both
// in canonical (bit-reversed) cell order.
func ComputeCellsAndKZGProofs(
	cells, proofs []byte,
	b []byte,
	backend accel.Backend,
	s *setup.Settings,
) error {
	if cells == nil && proofs == nil {
		return fmt.Errorf("%w: no output requested", ErrBadArgs)
	}
	if cells != nil && len(cells) != params.CellsPerExtBlob*params.BytesPerCell {
		return fmt.Errorf("%w: cells buffer is %d bytes, want %d",
			ErrBadArgs, len(cells), params.CellsPerExtBlob*params.BytesPerCell)
	}
	if proofs != nil && len(proofs) != params.CellsPerExtBlob*params.BytesPerProof {
		return fmt.Errorf("%w: proofs buffer is %d bytes, want %d",
			ErrBadArgs, len(proofs), params.CellsPerExtBlob*params.BytesPerProof)
	}
	if !s.IsPopulated() {
		return fmt.Errorf("%w: setup is not populated", ErrBadArgs)
	}

	if backend == nil {
		backend = accel.Acquire()
		defer accel.Release(backend)
	}

	evals, err := blob.ToPolynomial(b)
	if err != nil {
		return err
	}

	monomial, err := lagrangeToMonomial(evals, backend, s)
	if err != nil {
		return err
	}

	// Outputs are staged privately and copied out only once every step has
	// succeeded, so a failing step never leaves partial data in a caller
	// buffer.
	var stagedCells, stagedProofs []byte
	if cells != nil {
		stagedCells = make([]byte, len(cells))
		if err := computeCells(stagedCells, monomial, backend, s); err != nil {
			return err
		}
	}
	if proofs != nil {
		stagedProofs = make([]byte, len(proofs))
		if err := computeProofs(stagedProofs, monomial, backend, s); err != nil {
			return err
		}
	}
	copy(cells, stagedCells)
	copy(proofs, stagedProofs)
	return nil
}

// lagrangeToMonomial converts bit-reversed blob evaluations to monomial
// coefficients over the blob domain.
func lagrangeToMonomial(evals []fr.Element, backend accel.Backend, s *setup.Settings) ([]fr.Element, error) {
	natural := make([]fr.Element, len(evals))
	copy(natural, evals)
	if err := bitrev.Permute(natural); err != nil {
		return nil, err
	}
	monomial := make([]fr.Element, len(evals))
	if err := backend.FFT(monomial, natural, s.ReverseRootsOfUnity, true); err != nil {
		return nil, err
	}
	return monomial, nil
}

// computeCells evaluates the zero-extended polynomial over the extended
// domain and packs the evaluations into the flat cells buffer.
func computeCells(cells []byte, monomial []fr.Element, backend accel.Backend, s *setup.Settings) error {
	extended := make([]fr.Element, params.FieldElementsPerExtBlob)
	copy(extended, monomial)

	evals := make([]fr.Element, params.FieldElementsPerExtBlob)
	if err := backend.FFT(evals, extended, s.RootsOfUnity, false); err != nil {
		return err
	}
	if err := bitrev.Permute(evals); err != nil {
		return err
	}

	for i := uint64(0); i < params.CellsPerExtBlob; i++ {
		cell := MutCellAt(cells, i, s)
		for j := uint64(0); j < s.FieldElementsPerCell; j++ {
			b := evals[i*s.FieldElementsPerCell+j].Bytes()
			copy(cell[j*params.BytesPerFieldElement:], b[:])
		}
	}
	return nil
}

// computeProofs runs the FK20 multi-proof over the monomial polynomial and
// writes the compressed proofs in canonical cell order. Setups carrying
// precomputed window tables route the row MSMs through them.
func computeProofs(proofs []byte, monomial []fr.Element, backend accel.Backend, s *setup.Settings) error {
	proofPoints, err := fk20.ComputeCellProofs(
		monomial, s.XExtFFTColumns, s.RootsOfUnity, s.ReverseRootsOfUnity, s.RowTables(), backend)
	if err != nil {
		return err
	}
	if err := bitrev.Permute(proofPoints); err != nil {
		return err
	}
	for i := range proofPoints {
		compressed := proofPoints[i].Bytes()
		copy(proofs[i*params.BytesPerProof:], compressed[:])
	}
	return nil
}
