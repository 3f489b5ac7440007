// Package blob converts EIP-4844 blobs between their canonical byte encoding
// and scalar-field polynomial form. A blob is FieldElementsPerBlob 32-byte
// big-endian scalars, each of which must be canonical (strictly below the
// BLS12-381 scalar field modulus); the decoded values are the polynomial's
// evaluations over the bit-reverse-permuted blob domain.
package blob

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/holiman/uint256"

	"github.com/eth2030/blobkzg/params"
)

var (
	ErrBlobLength   = errors.New("blob: blob must be exactly BytesPerBlob bytes")
	ErrNonCanonical = errors.New("blob: field element is not canonical")
)

// blsModulus is the BLS12-381 scalar field modulus as a uint256 for fast
// canonicity comparisons.
var blsModulus = new(uint256.Int)

func init() {
	blsModulus.SetFromBig(fr.Modulus())
}

// ToPolynomial decodes a blob into its FieldElementsPerBlob evaluations.
// Every 32-byte chunk must be a canonical scalar; the index of the first
// offending element is reported in the error.
func ToPolynomial(b []byte) ([]fr.Element, error) {
	if len(b) != params.BytesPerBlob {
		return nil, ErrBlobLength
	}

	poly := make([]fr.Element, params.FieldElementsPerBlob)
	var v uint256.Int
	for i := range poly {
		chunk := b[i*params.BytesPerFieldElement : (i+1)*params.BytesPerFieldElement]
		v.SetBytes32(chunk)
		if v.Cmp(blsModulus) >= 0 {
			return nil, fmt.Errorf("%w: element %d", ErrNonCanonical, i)
		}
		poly[i].SetBytes(chunk)
	}
	return poly, nil
}

// FromPolynomial encodes evaluations back into blob bytes.
func FromPolynomial(poly []fr.Element) ([]byte, error) {
	if len(poly) != params.FieldElementsPerBlob {
		return nil, fmt.Errorf("%w: polynomial has %d elements, want %d",
			ErrBlobLength, len(poly), params.FieldElementsPerBlob)
	}
	out := make([]byte, params.BytesPerBlob)
	for i := range poly {
		b := poly[i].Bytes()
		copy(out[i*params.BytesPerFieldElement:], b[:])
	}
	return out, nil
}
