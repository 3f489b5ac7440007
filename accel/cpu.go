package accel

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/eth2030/blobkzg/bitrev"
)

// cpuBackend is the reference implementation of the Backend capability set.
// It is stateless, always available, and defines the bit-exact results every
// accelerated backend must reproduce.
type cpuBackend struct{}

var cpu = &cpuBackend{}

// CPU returns the reference backend. It holds no resources and may be shared
// freely across acquisitions (though not across concurrent calls).
func CPU() Backend {
	return cpu
}

func (*cpuBackend) Name() string { return "cpu" }

func (*cpuBackend) Close() error { return nil }

func (*cpuBackend) FrAddBatch(out, a, b []fr.Element) error {
	if len(out) != len(a) || len(a) != len(b) {
		return ErrLengthMismatch
	}
	for i := range out {
		out[i].Add(&a[i], &b[i])
	}
	return nil
}

func (*cpuBackend) FrMulBatch(out, a, b []fr.Element) error {
	if len(out) != len(a) || len(a) != len(b) {
		return ErrLengthMismatch
	}
	for i := range out {
		out[i].Mul(&a[i], &b[i])
	}
	return nil
}

func (*cpuBackend) FFT(out, in []fr.Element, roots []fr.Element, inverse bool) error {
	n := len(in)
	if len(out) != n {
		return ErrLengthMismatch
	}
	if !bitrev.IsPowerOfTwo(uint64(n)) {
		return ErrNotPowerOfTwo
	}
	if len(roots) < 2 || (len(roots)-1)%n != 0 {
		return ErrBadRootsTable
	}
	rootsStride := (len(roots) - 1) / n

	fftFast(out, in, 1, roots, rootsStride)

	if inverse {
		var invN fr.Element
		invN.SetUint64(uint64(n))
		invN.Inverse(&invN)
		for i := range out {
			out[i].Mul(&out[i], &invN)
		}
	}
	return nil
}

// fftFast is the recursive radix-2 decimation-in-time transform. in is read
// at the given stride; out receives the dense result. The butterfly uses the
// roots table at rootsStride intervals.
func fftFast(out, in []fr.Element, inStride int, roots []fr.Element, rootsStride int) {
	half := len(out) / 2
	if half == 0 {
		out[0] = in[0]
		return
	}

	fftFast(out[:half], in, inStride*2, roots, rootsStride*2)
	fftFast(out[half:], in[inStride:], inStride*2, roots, rootsStride*2)

	var yTimesRoot fr.Element
	for i := 0; i < half; i++ {
		yTimesRoot.Mul(&out[half+i], &roots[i*rootsStride])
		out[half+i].Sub(&out[i], &yTimesRoot)
		out[i].Add(&out[i], &yTimesRoot)
	}
}

func (*cpuBackend) MSM(points []bls12381.G1Affine, scalars []fr.Element) (bls12381.G1Affine, error) {
	var res bls12381.G1Affine
	if len(points) != len(scalars) {
		return res, ErrLengthMismatch
	}
	if len(points) == 0 {
		// Affine zero value is the point at infinity.
		return res, nil
	}

	// Small inputs are cheaper as plain scalar multiplications than through
	// the bucket method's setup.
	if len(points) <= 4 {
		var acc, term bls12381.G1Jac
		var s big.Int
		for i := range points {
			term.FromAffine(&points[i])
			term.ScalarMultiplication(&term, scalars[i].BigInt(&s))
			acc.AddAssign(&term)
		}
		res.FromJacobian(&acc)
		return res, nil
	}

	var acc bls12381.G1Jac
	if _, err := acc.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
		return res, err
	}
	res.FromJacobian(&acc)
	return res, nil
}
