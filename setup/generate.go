package setup

import (
	"fmt"
	"math/big"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
	"golang.org/x/crypto/blake2b"

	"github.com/eth2030/blobkzg/bitrev"
	"github.com/eth2030/blobkzg/fk20"
	"github.com/eth2030/blobkzg/log"
	"github.com/eth2030/blobkzg/params"
)

// GenerateInsecure builds a fully-populated Settings from a deterministic
// secret derived from seed. The SRS secret is knowable to anyone holding the
// seed, so the result is only suitable for tests, development and
// benchmarks, never for production proofs.
//
// The generator evaluates the Lagrange basis polynomials at the secret
// directly instead of transforming the monomial points, which is both faster
// and an independent construction the round-trip tests can lean on.
func GenerateInsecure(seed []byte, opts ...Option) (*Settings, error) {
	start := time.Now()

	cfg := applyOptions(opts)

	secret := deriveSecret(seed)
	s := New()
	if err := populateFromSecret(s, &secret); err != nil {
		s.Free()
		return nil, err
	}
	if cfg.wbits != 0 {
		if err := s.buildTables(cfg.wbits); err != nil {
			s.Free()
			return nil, err
		}
	}
	s.setCellStride()

	log.Default().Module("setup").Info("generated insecure trusted setup",
		"wbits", cfg.wbits, "elapsed", time.Since(start))
	return s, nil
}

// Option tunes a populate path.
type Option func(*options)

type options struct {
	wbits uint64
}

// WithPrecompute enables the optional windowed-MSM tables with the given
// window width in bits. Zero disables the tables.
func WithPrecompute(wbits uint64) Option {
	return func(o *options) { o.wbits = wbits }
}

func applyOptions(opts []Option) options {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// deriveSecret maps a seed to a nonzero scalar via blake2b.
func deriveSecret(seed []byte) fr.Element {
	var secret fr.Element
	material := append([]byte("blobkzg insecure setup secret/"), seed...)
	for {
		sum := blake2b.Sum256(material)
		secret.SetBytes(sum[:])
		if !secret.IsZero() {
			return secret
		}
		material = sum[:]
	}
}

// populateFromSecret fills every sequence except Tables.
func populateFromSecret(s *Settings, secret *fr.Element) error {
	s.allocSequences()

	if err := s.computeRootsOfUnity(); err != nil {
		return err
	}

	_, _, g1Gen, g2Gen := bls12381.Generators()

	// Monomial G1 powers: [s^0]G1 is the generator, the rest come from one
	// batch multiplication over the running powers.
	powers := make([]fr.Element, params.NumG1Points-1)
	powers[0] = *secret
	for i := 1; i < len(powers); i++ {
		powers[i].Mul(&powers[i-1], secret)
	}
	s.G1ValuesMonomial[0] = g1Gen
	copy(s.G1ValuesMonomial[1:], bls12381.BatchScalarMultiplicationG1(&g1Gen, powers))

	// Lagrange G1 points, evaluated at the secret:
	//   l_j(s) = w^j * (s^n - 1) / (n * (s - w^j))
	// over the blob domain, then bit-reverse permuted.
	lagrangeScalars, err := lagrangeAtSecret(secret, s.RootsOfUnity)
	if err != nil {
		return err
	}
	copy(s.G1ValuesLagrangeBRP, bls12381.BatchScalarMultiplicationG1(&g1Gen, lagrangeScalars))
	if err := bitrev.Permute(s.G1ValuesLagrangeBRP); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	// Monomial G2 powers.
	var sPow fr.Element
	sPow.SetOne()
	var bi big.Int
	s.G2ValuesMonomial[0] = g2Gen
	for i := 1; i < params.NumG2Points; i++ {
		sPow.Mul(&sPow, secret)
		s.G2ValuesMonomial[i].ScalarMultiplication(&g2Gen, sPow.BigInt(&bi))
	}

	// FK20 coset-FFT basis.
	cols, err := fk20.PrecomputeXExtFFTColumns(s.G1ValuesMonomial, s.RootsOfUnity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.XExtFFTColumns = cols

	return nil
}

// computeRootsOfUnity expands the extended-domain generator into the three
// root tables. The sequences must already be allocated.
func (s *Settings) computeRootsOfUnity() error {
	domain := fft.NewDomain(params.FieldElementsPerExtBlob)

	s.RootsOfUnity[0].SetOne()
	for i := 1; i <= params.FieldElementsPerExtBlob; i++ {
		s.RootsOfUnity[i].Mul(&s.RootsOfUnity[i-1], &domain.Generator)
	}
	if !s.RootsOfUnity[params.FieldElementsPerExtBlob].IsOne() {
		return fmt.Errorf("%w: root of unity has wrong order", ErrInternal)
	}

	for i := range s.ReverseRootsOfUnity {
		s.ReverseRootsOfUnity[i] = s.RootsOfUnity[params.FieldElementsPerExtBlob-i]
	}

	copy(s.BRPRootsOfUnity, s.RootsOfUnity[:params.FieldElementsPerExtBlob])
	if err := bitrev.Permute(s.BRPRootsOfUnity); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// lagrangeAtSecret evaluates every blob-domain Lagrange basis polynomial at
// the secret. roots is the extended-domain table; the blob domain samples it
// at stride 2.
func lagrangeAtSecret(secret *fr.Element, roots []fr.Element) ([]fr.Element, error) {
	const n = params.FieldElementsPerBlob
	const stride = params.FieldElementsPerExtBlob / n

	// z = s^n - 1. A zero z would mean the secret landed on the evaluation
	// domain itself.
	var z, one fr.Element
	one.SetOne()
	z.Exp(*secret, big.NewInt(n))
	z.Sub(&z, &one)
	if z.IsZero() {
		return nil, fmt.Errorf("%w: insecure secret lies on the evaluation domain", ErrInternal)
	}

	var nInv fr.Element
	nInv.SetUint64(n)
	nInv.Inverse(&nInv)

	// denom_j = s - w^j, inverted in one batch.
	denoms := make([]fr.Element, n)
	for j := 0; j < n; j++ {
		denoms[j].Sub(secret, &roots[j*stride])
	}
	invDenoms := fr.BatchInvert(denoms)

	out := make([]fr.Element, n)
	var t fr.Element
	for j := 0; j < n; j++ {
		t.Mul(&z, &nInv)
		t.Mul(&t, &invDenoms[j])
		out[j].Mul(&t, &roots[j*stride])
	}
	return out, nil
}

// buildTables precomputes the per-row windowed-MSM tables: all window
// multiples 1..2^w-1 of each column point, serialized in raw limb form.
// The decoded form feeds the fixed-window row MSM in the proof pipeline.
func (s *Settings) buildTables(wbits uint64) error {
	if wbits == 0 || wbits > maxWBits {
		return fmt.Errorf("%w: wbits %d out of range", ErrBadArgs, wbits)
	}

	multiples := (uint64(1) << wbits) - 1
	s.WBits = wbits
	s.TableSize = tableSizeForWBits(wbits)
	s.ScratchSize = (uint64(1) << wbits) * serializedG1Size

	s.Tables = make([][]byte, params.CellsPerExtBlob)
	for row := range s.Tables {
		table := make([]byte, s.TableSize)
		w := &snapWriter{buf: table}
		for _, point := range s.XExtFFTColumns[row] {
			var acc bls12381.G1Jac
			acc.FromAffine(&point)
			jacs := make([]bls12381.G1Jac, multiples)
			jacs[0] = acc
			var base bls12381.G1Jac
			base.FromAffine(&point)
			for m := uint64(1); m < multiples; m++ {
				acc.AddAssign(&base)
				jacs[m] = acc
			}
			for _, aff := range bls12381.BatchJacobianToAffineG1(jacs) {
				w.g1(&aff)
			}
		}
		if w.off != len(table) {
			return fmt.Errorf("%w: table row %d sized %d, wrote %d",
				ErrInternal, row, len(table), w.off)
		}
		s.Tables[row] = table
	}
	return s.decodeRowTables()
}
