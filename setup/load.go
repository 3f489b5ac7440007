package setup

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/eth2030/blobkzg/bitrev"
	"github.com/eth2030/blobkzg/fk20"
	"github.com/eth2030/blobkzg/log"
	"github.com/eth2030/blobkzg/params"
)

// trustedSetupJSON mirrors the ceremony output format: compressed points as
// 0x-prefixed hex strings.
type trustedSetupJSON struct {
	G1Monomial []string `json:"g1_monomial"`
	G1Lagrange []string `json:"g1_lagrange"`
	G2Monomial []string `json:"g2_monomial"`
}

// LoadJSON reads a ceremony-format trusted setup and returns a populated
// Settings. Every point is decompressed and subgroup-checked; the Lagrange
// points are stored bit-reverse permuted and the FK20 coset basis is
// precomputed.
func LoadJSON(r io.Reader, opts ...Option) (*Settings, error) {
	start := time.Now()

	cfg := applyOptions(opts)

	var raw trustedSetupJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode trusted setup: %v", ErrBadArgs, err)
	}
	if len(raw.G1Monomial) != params.NumG1Points {
		return nil, fmt.Errorf("%w: expected %d g1 monomial points, got %d",
			ErrBadArgs, params.NumG1Points, len(raw.G1Monomial))
	}
	if len(raw.G1Lagrange) != params.NumG1Points {
		return nil, fmt.Errorf("%w: expected %d g1 lagrange points, got %d",
			ErrBadArgs, params.NumG1Points, len(raw.G1Lagrange))
	}
	if len(raw.G2Monomial) != params.NumG2Points {
		return nil, fmt.Errorf("%w: expected %d g2 monomial points, got %d",
			ErrBadArgs, params.NumG2Points, len(raw.G2Monomial))
	}

	s := New()
	s.allocSequences()

	if err := s.computeRootsOfUnity(); err != nil {
		s.Free()
		return nil, err
	}

	for i, h := range raw.G1Monomial {
		if err := decodeG1(&s.G1ValuesMonomial[i], h); err != nil {
			s.Free()
			return nil, fmt.Errorf("g1 monomial %d: %w", i, err)
		}
	}
	for i, h := range raw.G1Lagrange {
		if err := decodeG1(&s.G1ValuesLagrangeBRP[i], h); err != nil {
			s.Free()
			return nil, fmt.Errorf("g1 lagrange %d: %w", i, err)
		}
	}
	if err := bitrev.Permute(s.G1ValuesLagrangeBRP); err != nil {
		s.Free()
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	for i, h := range raw.G2Monomial {
		if err := decodeG2(&s.G2ValuesMonomial[i], h); err != nil {
			s.Free()
			return nil, fmt.Errorf("g2 monomial %d: %w", i, err)
		}
	}

	cols, err := fk20.PrecomputeXExtFFTColumns(s.G1ValuesMonomial, s.RootsOfUnity)
	if err != nil {
		s.Free()
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.XExtFFTColumns = cols

	if cfg.wbits != 0 {
		if err := s.buildTables(cfg.wbits); err != nil {
			s.Free()
			return nil, err
		}
	}
	s.setCellStride()

	log.Default().Module("setup").Info("loaded trusted setup",
		"wbits", cfg.wbits, "elapsed", time.Since(start))
	return s, nil
}

func decodeG1(dst *bls12381.G1Affine, h string) error {
	b, err := hexutil.Decode(h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	if len(b) != params.BytesPerCompressedG1 {
		return fmt.Errorf("%w: g1 point is %d bytes", ErrBadArgs, len(b))
	}
	// SetBytes rejects points off the curve or outside the subgroup.
	if _, err := dst.SetBytes(b); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return nil
}

func decodeG2(dst *bls12381.G2Affine, h string) error {
	b, err := hexutil.Decode(h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	if len(b) != params.BytesPerCompressedG2 {
		return fmt.Errorf("%w: g2 point is %d bytes", ErrBadArgs, len(b))
	}
	if _, err := dst.SetBytes(b); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return nil
}
