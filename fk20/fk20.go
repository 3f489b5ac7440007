// Package fk20 implements the FK20 batched opening-proof algorithm for cell
// proofs: one KZG proof per cell of the extended blob, computed in
// quasi-linear time via Toeplitz matrix products. The polynomial is split
// into FieldElementsPerCell strided sub-polynomials; each contributes a
// circulant product evaluated with FFTs, and the per-row accumulations are
// multi-scalar multiplications against the trusted setup's precomputed
// x_ext_fft columns.
//
// The scalar FFTs and the row MSMs run through the accel backend; setups
// carrying fixed-window tables route the row MSMs through the precomputed
// multiples instead. The G1 FFTs are performed locally since point
// transforms are not part of the backend capability set.
package fk20

import (
	"errors"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/eth2030/blobkzg/accel"
	"github.com/eth2030/blobkzg/bitrev"
	"github.com/eth2030/blobkzg/params"
)

var (
	ErrPolyLength    = errors.New("fk20: polynomial length must equal the blob domain size")
	ErrColumnsShape  = errors.New("fk20: x_ext_fft columns have the wrong shape")
	ErrRootsLength   = errors.New("fk20: roots table does not cover the extended domain")
	ErrSetupLength   = errors.New("fk20: setup points must cover the blob domain")
	ErrNotPowerOfTwo = errors.New("fk20: transform length is not a power of two")
	ErrTablesShape   = errors.New("fk20: row tables have the wrong shape")
)

// RowTables holds the fixed-window precompute for the row MSMs: for every
// extended-domain row, all window multiples 1..2^WBits-1 of each x_ext_fft
// column point. Multiples is indexed [row][point][multiple-1].
type RowTables struct {
	WBits     uint64
	Multiples [][][]bls12381.G1Affine
}

func (t *RowTables) validate() error {
	if t.WBits == 0 || t.WBits > 31 || len(t.Multiples) != params.CellsPerExtBlob {
		return ErrTablesShape
	}
	want := int(uint64(1)<<t.WBits) - 1
	for _, row := range t.Multiples {
		if len(row) != params.FieldElementsPerCell {
			return ErrTablesShape
		}
		for _, multiples := range row {
			if len(multiples) != want {
				return ErrTablesShape
			}
		}
	}
	return nil
}

// toeplitzCoeffsStride extracts the Toeplitz coefficient vector for the
// sub-polynomial at the given offset. out has length 2*(n/stride); the
// layout matches the circulant embedding: top coefficient first, a zero gap,
// then the strided tail.
func toeplitzCoeffsStride(out, poly []fr.Element, offset, stride int) {
	n := len(poly)
	k := n / stride
	k2 := 2 * k

	out[0] = poly[n-1-offset]
	for i := 1; i < k+2; i++ {
		out[i].SetZero()
	}
	for i, j := k+2, 2*stride-offset-1; i < k2; i, j = i+1, j+stride {
		out[i] = poly[j]
	}
}

// ComputeCellProofs computes one opening proof per extended-blob cell for
// the polynomial given in monomial form. cols is the setup's precomputed
// x_ext_fft column matrix; roots and reverseRoots are the setup's expanded
// forward and inverse root tables. A non-nil tables switches the row
// accumulations to the fixed-window path over the precomputed multiples
// instead of the backend MSM. The returned proofs are in FFT output order;
// the caller applies the bit-reversal permutation for canonical cell order.
func ComputeCellProofs(
	poly []fr.Element,
	cols [][]bls12381.G1Affine,
	roots, reverseRoots []fr.Element,
	tables *RowTables,
	backend accel.Backend,
) ([]bls12381.G1Affine, error) {
	if len(poly) != params.FieldElementsPerBlob {
		return nil, ErrPolyLength
	}
	if len(cols) != params.CellsPerExtBlob {
		return nil, ErrColumnsShape
	}
	for i := range cols {
		if len(cols[i]) != params.FieldElementsPerCell {
			return nil, ErrColumnsShape
		}
	}
	if len(roots) != params.FieldElementsPerExtBlob+1 ||
		len(reverseRoots) != params.FieldElementsPerExtBlob+1 {
		return nil, ErrRootsLength
	}
	if tables != nil {
		if err := tables.validate(); err != nil {
			return nil, err
		}
	}

	const (
		m  = params.FieldElementsPerCell
		k  = params.FieldElementsPerBlob / m
		k2 = 2 * k
	)

	// One FFT'd Toeplitz coefficient vector per sub-polynomial.
	coeffs := make([]fr.Element, k2)
	toeplitzFFTs := make([][]fr.Element, m)
	for i := 0; i < m; i++ {
		toeplitzCoeffsStride(coeffs, poly, i, m)
		out := make([]fr.Element, k2)
		if err := backend.FFT(out, coeffs, roots, false); err != nil {
			return nil, err
		}
		toeplitzFFTs[i] = out
	}

	// Per-row MSM against the precomputed columns.
	hExtFFT := make([]bls12381.G1Jac, k2)
	rowScalars := make([]fr.Element, m)
	for j := 0; j < k2; j++ {
		for i := 0; i < m; i++ {
			rowScalars[i] = toeplitzFFTs[i][j]
		}
		if tables != nil {
			tableMSM(&hExtFFT[j], tables.Multiples[j], rowScalars, tables.WBits)
			continue
		}
		aff, err := backend.MSM(cols[j], rowScalars)
		if err != nil {
			return nil, err
		}
		hExtFFT[j].FromAffine(&aff)
	}

	// Retrieve the h coefficients, zero the upper half, and evaluate.
	h, err := g1FFT(hExtFFT, reverseRoots, true)
	if err != nil {
		return nil, err
	}
	var infinity bls12381.G1Jac
	for i := k; i < k2; i++ {
		h[i] = infinity
	}
	proofsJac, err := g1FFT(h, roots, false)
	if err != nil {
		return nil, err
	}

	return bls12381.BatchJacobianToAffineG1(proofsJac), nil
}

// tableMSM accumulates one row MSM from the precomputed window multiples
// with a left-to-right fixed-window walk: per window, wbits doublings of the
// accumulator, then one mixed addition per point whose digit is nonzero. The
// table lookup replaces the per-window point arithmetic a plain MSM spends
// on recomputing multiples.
func tableMSM(acc *bls12381.G1Jac, row [][]bls12381.G1Affine, scalars []fr.Element, wbits uint64) {
	// Scalars leave Montgomery form once; digits index the multiples table.
	limbs := make([][fr.Limbs]uint64, len(scalars))
	for i := range scalars {
		limbs[i] = scalars[i].Bits()
	}

	windows := (uint64(fr.Bits) + wbits - 1) / wbits
	for w := int(windows) - 1; w >= 0; w-- {
		for b := uint64(0); b < wbits; b++ {
			acc.DoubleAssign()
		}
		for i := range limbs {
			if d := windowDigit(&limbs[i], uint64(w)*wbits, wbits); d != 0 {
				acc.AddMixed(&row[i][d-1])
			}
		}
	}
}

// windowDigit extracts the wbits-wide digit starting at bit pos from a
// scalar's regular-form limbs. Digits may straddle a limb boundary.
func windowDigit(limbs *[fr.Limbs]uint64, pos, wbits uint64) uint64 {
	limb := pos / 64
	if limb >= fr.Limbs {
		return 0
	}
	shift := pos % 64
	d := limbs[limb] >> shift
	if shift+wbits > 64 && limb+1 < fr.Limbs {
		d |= limbs[limb+1] << (64 - shift)
	}
	return d & ((uint64(1) << wbits) - 1)
}

// PrecomputeXExtFFTColumns builds the x_ext_fft column matrix from the
// monomial G1 setup points: for every in-cell offset, the reversed strided
// selection of setup points is zero-padded to the double domain,
// transformed, and scattered into per-row columns. This runs once at setup
// load time.
func PrecomputeXExtFFTColumns(
	g1Monomial []bls12381.G1Affine,
	roots []fr.Element,
) ([][]bls12381.G1Affine, error) {
	if len(g1Monomial) != params.NumG1Points {
		return nil, ErrSetupLength
	}
	if len(roots) != params.FieldElementsPerExtBlob+1 {
		return nil, ErrRootsLength
	}

	const (
		m  = params.FieldElementsPerCell
		k  = params.NumG1Points / m
		k2 = 2 * k
	)

	cols := make([][]bls12381.G1Affine, k2)
	for j := range cols {
		cols[j] = make([]bls12381.G1Affine, m)
	}

	x := make([]bls12381.G1Jac, k2)
	var infinity bls12381.G1Jac
	for offset := 0; offset < m; offset++ {
		// x = [g1[n-m-1-offset], g1[n-2m-1-offset], ..., identity],
		// zero-padded to k2.
		start := params.NumG1Points - m - 1 - offset
		for i := 0; i+1 < k; i++ {
			x[i].FromAffine(&g1Monomial[start-i*m])
		}
		for i := k - 1; i < k2; i++ {
			x[i] = infinity
		}

		xExtFFT, err := g1FFT(x, roots, false)
		if err != nil {
			return nil, err
		}
		for j := 0; j < k2; j++ {
			cols[j][offset].FromJacobian(&xExtFFT[j])
		}
	}
	return cols, nil
}

// ---------------------------------------------------------------------------
// G1 FFT
// ---------------------------------------------------------------------------

// g1FFT transforms a vector of G1 points using the same strided-roots
// contract as the scalar FFT: roots is the full expanded table and inverse
// transforms scale by 1/n. The input is not modified.
func g1FFT(in []bls12381.G1Jac, roots []fr.Element, inverse bool) ([]bls12381.G1Jac, error) {
	n := len(in)
	if !bitrev.IsPowerOfTwo(uint64(n)) {
		return nil, ErrNotPowerOfTwo
	}
	if len(roots) < 2 || (len(roots)-1)%n != 0 {
		return nil, ErrRootsLength
	}
	rootsStride := (len(roots) - 1) / n

	out := make([]bls12381.G1Jac, n)
	g1FFTFast(out, in, 1, roots, rootsStride)

	if inverse {
		var invN fr.Element
		invN.SetUint64(uint64(n))
		invN.Inverse(&invN)
		var s big.Int
		invN.BigInt(&s)
		for i := range out {
			out[i].ScalarMultiplication(&out[i], &s)
		}
	}
	return out, nil
}

// g1FFTFast mirrors the scalar radix-2 recursion with point butterflies:
// multiplication by a root becomes scalar multiplication of the point.
func g1FFTFast(out, in []bls12381.G1Jac, inStride int, roots []fr.Element, rootsStride int) {
	half := len(out) / 2
	if half == 0 {
		out[0] = in[0]
		return
	}

	g1FFTFast(out[:half], in, inStride*2, roots, rootsStride*2)
	g1FFTFast(out[half:], in[inStride:], inStride*2, roots, rootsStride*2)

	var yTimesRoot bls12381.G1Jac
	var s big.Int
	for i := 0; i < half; i++ {
		root := &roots[i*rootsStride]
		if root.IsOne() {
			yTimesRoot = out[half+i]
		} else {
			yTimesRoot.ScalarMultiplication(&out[half+i], root.BigInt(&s))
		}
		out[half+i].Set(&out[i])
		out[half+i].SubAssign(&yTimesRoot)
		out[i].AddAssign(&yTimesRoot)
	}
}
