//go:build goethkzg

package eip7594

import (
	"bytes"
	"testing"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/eth2030/blobkzg/accel"
	"github.com/eth2030/blobkzg/params"
)

// Cross-checks the zero-blob outputs against an independent implementation.
// The zero polynomial commits and opens to the identity under any trusted
// setup, so the two libraries must agree even though their setups differ.
func TestCrossCheckZeroBlobAgainstGoEthKZG(t *testing.T) {
	if goethkzg.CellsPerExtBlob != params.CellsPerExtBlob {
		t.Fatalf("cell count disagreement: %d vs %d",
			goethkzg.CellsPerExtBlob, params.CellsPerExtBlob)
	}

	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		t.Fatal(err)
	}

	var refBlob goethkzg.Blob
	refCells, refProofs, err := ctx.ComputeCellsAndKZGProofs(&refBlob, 0)
	if err != nil {
		t.Fatal(err)
	}

	s := testSettings(t)
	cells := make([]byte, params.CellsPerExtBlob*params.BytesPerCell)
	proofs := make([]byte, params.CellsPerExtBlob*params.BytesPerProof)
	zeroBlob := make([]byte, params.BytesPerBlob)
	if err := ComputeCellsAndKZGProofs(cells, proofs, zeroBlob, accel.CPU(), s); err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < params.CellsPerExtBlob; i++ {
		if !bytes.Equal(CellAt(cells, i, s), refCells[i][:]) {
			t.Fatalf("cell %d disagrees with the reference implementation", i)
		}
		got := proofs[i*params.BytesPerProof : (i+1)*params.BytesPerProof]
		if !bytes.Equal(got, refProofs[i][:]) {
			t.Fatalf("proof %d disagrees with the reference implementation", i)
		}
	}
}

// Cross-checks the cells of a nonzero blob. Cells are evaluations of the
// blob polynomial over the extended domain, independent of the trusted
// setup, so the two libraries must produce identical cells for any blob.
// Proofs are setup-dependent and are not comparable here.
func TestCrossCheckCellsAgainstGoEthKZG(t *testing.T) {
	raw := testBlob(t, "cross-check cells")

	var refBlob goethkzg.Blob
	copy(refBlob[:], raw)
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		t.Fatal(err)
	}
	refCells, err := ctx.ComputeCells(&refBlob, 0)
	if err != nil {
		t.Fatal(err)
	}

	s := testSettings(t)
	cells := make([]byte, params.CellsPerExtBlob*params.BytesPerCell)
	if err := ComputeCellsAndKZGProofs(cells, nil, raw, accel.CPU(), s); err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < params.CellsPerExtBlob; i++ {
		if !bytes.Equal(CellAt(cells, i, s), refCells[i][:]) {
			t.Fatalf("cell %d disagrees with the reference implementation", i)
		}
	}
}
