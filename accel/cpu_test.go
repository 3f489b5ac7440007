package accel

import (
	"encoding/binary"
	"math/big"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
	"golang.org/x/crypto/blake2b"
)

// testRoots builds the expanded root-of-unity table (n+1 entries, wrapping
// back to one) for a transform of size n.
func testRoots(t *testing.T, n int) []fr.Element {
	t.Helper()
	domain := fft.NewDomain(uint64(n))
	roots := make([]fr.Element, n+1)
	roots[0].SetOne()
	for i := 1; i <= n; i++ {
		roots[i].Mul(&roots[i-1], &domain.Generator)
	}
	if !roots[n].IsOne() {
		t.Fatal("generator order does not match transform size")
	}
	return roots
}

// testReverseRoots inverts the direction of an expanded roots table.
func testReverseRoots(roots []fr.Element) []fr.Element {
	rev := make([]fr.Element, len(roots))
	for i := range rev {
		rev[i] = roots[len(roots)-1-i]
	}
	return rev
}

// testScalars derives a deterministic scalar vector from a seed label.
func testScalars(label string, n int) []fr.Element {
	out := make([]fr.Element, n)
	var ctr [8]byte
	for i := range out {
		binary.BigEndian.PutUint64(ctr[:], uint64(i))
		sum := blake2b.Sum256(append([]byte(label), ctr[:]...))
		out[i].SetBytes(sum[:])
	}
	return out
}

// naiveDFT is the quadratic reference transform used to validate the fast
// path on small sizes.
func naiveDFT(in []fr.Element, roots []fr.Element) []fr.Element {
	n := len(in)
	stride := (len(roots) - 1) / n
	out := make([]fr.Element, n)
	var term fr.Element
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			term.Mul(&in[j], &roots[(j*k%n)*stride])
			out[k].Add(&out[k], &term)
		}
	}
	return out
}

func TestCPU_FrAddBatch(t *testing.T) {
	a := testScalars("add-a", 33)
	b := testScalars("add-b", 33)
	out := make([]fr.Element, 33)
	if err := CPU().FrAddBatch(out, a, b); err != nil {
		t.Fatalf("FrAddBatch: %v", err)
	}
	var want fr.Element
	for i := range out {
		want.Add(&a[i], &b[i])
		if !out[i].Equal(&want) {
			t.Fatalf("sum mismatch at %d", i)
		}
	}

	if err := CPU().FrAddBatch(out[:10], a, b); err != ErrLengthMismatch {
		t.Fatalf("short output: got %v, want ErrLengthMismatch", err)
	}
}

func TestCPU_FrMulBatch(t *testing.T) {
	a := testScalars("mul-a", 17)
	b := testScalars("mul-b", 17)
	out := make([]fr.Element, 17)
	if err := CPU().FrMulBatch(out, a, b); err != nil {
		t.Fatalf("FrMulBatch: %v", err)
	}
	var want fr.Element
	for i := range out {
		want.Mul(&a[i], &b[i])
		if !out[i].Equal(&want) {
			t.Fatalf("product mismatch at %d", i)
		}
	}
}

func TestCPU_FFT_MatchesNaiveDFT(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16, 64} {
		roots := testRoots(t, n)
		in := testScalars("fft", n)
		out := make([]fr.Element, n)
		if err := CPU().FFT(out, in, roots, false); err != nil {
			t.Fatalf("n=%d: FFT: %v", n, err)
		}
		want := naiveDFT(in, roots)
		for i := range out {
			if !out[i].Equal(&want[i]) {
				t.Fatalf("n=%d: FFT differs from naive DFT at index %d", n, i)
			}
		}
	}
}

func TestCPU_FFT_RoundTrip(t *testing.T) {
	n := 128
	roots := testRoots(t, n)
	reverse := testReverseRoots(roots)

	in := testScalars("roundtrip", n)
	freq := make([]fr.Element, n)
	back := make([]fr.Element, n)

	if err := CPU().FFT(freq, in, roots, false); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if err := CPU().FFT(back, freq, reverse, true); err != nil {
		t.Fatalf("inverse: %v", err)
	}
	for i := range in {
		if !back[i].Equal(&in[i]) {
			t.Fatalf("roundtrip mismatch at index %d", i)
		}
	}
}

// The roots table of a larger domain must be usable for smaller transforms
// via strided sampling.
func TestCPU_FFT_StridedRoots(t *testing.T) {
	big := 256
	small := 32
	bigRoots := testRoots(t, big)
	smallRoots := testRoots(t, small)

	in := testScalars("strided", small)
	viaBig := make([]fr.Element, small)
	viaSmall := make([]fr.Element, small)

	if err := CPU().FFT(viaBig, in, bigRoots, false); err != nil {
		t.Fatalf("big table: %v", err)
	}
	if err := CPU().FFT(viaSmall, in, smallRoots, false); err != nil {
		t.Fatalf("small table: %v", err)
	}
	for i := range in {
		if !viaBig[i].Equal(&viaSmall[i]) {
			t.Fatalf("strided sampling differs at index %d", i)
		}
	}
}

func TestCPU_FFT_Errors(t *testing.T) {
	roots := testRoots(t, 8)
	in := make([]fr.Element, 8)

	if err := CPU().FFT(make([]fr.Element, 4), in, roots, false); err != ErrLengthMismatch {
		t.Errorf("length mismatch: got %v", err)
	}
	if err := CPU().FFT(make([]fr.Element, 6), make([]fr.Element, 6), roots, false); err != ErrNotPowerOfTwo {
		t.Errorf("non power of two: got %v", err)
	}
	if err := CPU().FFT(make([]fr.Element, 16), make([]fr.Element, 16), roots, false); err != ErrBadRootsTable {
		t.Errorf("short roots table: got %v", err)
	}
}

func TestCPU_MSM(t *testing.T) {
	_, _, g1, _ := bls12381.Generators()

	// Points [1]G, [2]G, ..., [n]G with scalar weights; the expected result
	// is [sum(i * w_i)]G.
	for _, n := range []int{0, 1, 3, 4, 5, 33} {
		points := make([]bls12381.G1Affine, n)
		scalars := testScalars("msm", n)
		var jac, gjac bls12381.G1Jac
		gjac.FromAffine(&g1)
		for i := range points {
			jac.AddAssign(&gjac)
			points[i].FromJacobian(&jac)
		}

		got, err := CPU().MSM(points, scalars)
		if err != nil {
			t.Fatalf("n=%d: MSM: %v", n, err)
		}

		var weight, term fr.Element
		for i := range scalars {
			var idx fr.Element
			idx.SetUint64(uint64(i + 1))
			term.Mul(&scalars[i], &idx)
			weight.Add(&weight, &term)
		}
		var want bls12381.G1Affine
		want.ScalarMultiplication(&g1, weight.BigInt(new(big.Int)))
		if !got.Equal(&want) {
			t.Fatalf("n=%d: MSM result mismatch", n)
		}
	}

	if _, err := CPU().MSM(make([]bls12381.G1Affine, 2), make([]fr.Element, 3)); err != ErrLengthMismatch {
		t.Errorf("length mismatch: got %v", err)
	}
}

func TestCPU_MSM_ZeroScalars(t *testing.T) {
	_, _, g1, _ := bls12381.Generators()
	points := []bls12381.G1Affine{g1, g1, g1, g1, g1}
	scalars := make([]fr.Element, 5)

	got, err := CPU().MSM(points, scalars)
	if err != nil {
		t.Fatalf("MSM: %v", err)
	}
	if !got.IsInfinity() {
		t.Fatal("MSM with all-zero scalars should be the identity")
	}
}
