package blob

import (
	"errors"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/eth2030/blobkzg/params"
)

func TestToPolynomialRoundTrip(t *testing.T) {
	raw := make([]byte, params.BytesPerBlob)
	// Small values in the low bytes of each chunk are always canonical.
	for i := 0; i < params.FieldElementsPerBlob; i++ {
		raw[i*params.BytesPerFieldElement+31] = byte(i)
		raw[i*params.BytesPerFieldElement+30] = byte(i >> 8)
	}

	poly, err := ToPolynomial(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(poly) != params.FieldElementsPerBlob {
		t.Fatalf("got %d elements", len(poly))
	}

	var want fr.Element
	for i := range poly {
		want.SetUint64(uint64(i))
		if !poly[i].Equal(&want) {
			t.Fatalf("element %d = %s, want %d", i, poly[i].String(), i)
		}
	}

	back, err := FromPolynomial(poly)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != params.BytesPerBlob {
		t.Fatalf("encoded %d bytes", len(back))
	}
	for i := range raw {
		if back[i] != raw[i] {
			t.Fatalf("byte %d differs after round trip", i)
		}
	}
}

func TestToPolynomialLength(t *testing.T) {
	for _, n := range []int{0, 1, params.BytesPerBlob - 1, params.BytesPerBlob + 1} {
		if _, err := ToPolynomial(make([]byte, n)); !errors.Is(err, ErrBlobLength) {
			t.Fatalf("ToPolynomial(%d bytes) = %v, want ErrBlobLength", n, err)
		}
	}
}

func TestToPolynomialRejectsNonCanonical(t *testing.T) {
	raw := make([]byte, params.BytesPerBlob)

	// All-ones chunk is far above the field modulus.
	const bad = 7
	for i := 0; i < params.BytesPerFieldElement; i++ {
		raw[bad*params.BytesPerFieldElement+i] = 0xFF
	}

	_, err := ToPolynomial(raw)
	if !errors.Is(err, ErrNonCanonical) {
		t.Fatalf("ToPolynomial = %v, want ErrNonCanonical", err)
	}
	if !strings.Contains(err.Error(), "7") {
		t.Fatalf("error is missing the offending index: %v", err)
	}
}

func TestToPolynomialModulusBoundary(t *testing.T) {
	modulus := fr.Modulus().Bytes()

	raw := make([]byte, params.BytesPerBlob)
	copy(raw[params.BytesPerFieldElement-len(modulus):], modulus)
	if _, err := ToPolynomial(raw); !errors.Is(err, ErrNonCanonical) {
		t.Fatalf("modulus chunk accepted: %v", err)
	}

	// Modulus minus one is the largest canonical value.
	raw[params.BytesPerFieldElement-1]--
	poly, err := ToPolynomial(raw)
	if err != nil {
		t.Fatal(err)
	}
	var want, one fr.Element
	one.SetOne()
	want.SetZero()
	want.Sub(&want, &one)
	if !poly[0].Equal(&want) {
		t.Fatal("modulus-minus-one chunk decoded wrong")
	}
}

func TestFromPolynomialLength(t *testing.T) {
	if _, err := FromPolynomial(make([]fr.Element, 3)); !errors.Is(err, ErrBlobLength) {
		t.Fatalf("FromPolynomial(3 elements) = %v, want ErrBlobLength", err)
	}
}
