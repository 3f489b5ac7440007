// Package params defines the protocol-wide domain constants for EIP-4844
// blobs and their EIP-7594 extension into cells. Every array length in the
// trusted setup is a fixed function of these values; none of them is ever
// taken from caller input.
package params

const (
	// FieldElementsPerBlob is the number of BLS scalars encoded in one blob.
	FieldElementsPerBlob = 4096

	// FieldElementsPerExtBlob is the size of the extended evaluation domain.
	// The extension factor is 2, matching the Reed-Solomon rate used for
	// data-availability sampling.
	FieldElementsPerExtBlob = 2 * FieldElementsPerBlob

	// FieldElementsPerCell is the number of scalars packed into one cell.
	FieldElementsPerCell = 64

	// CellsPerExtBlob is the number of cells an extended blob splits into.
	CellsPerExtBlob = FieldElementsPerExtBlob / FieldElementsPerCell

	// CellsPerBlob is the number of cells covering the unextended blob.
	CellsPerBlob = FieldElementsPerBlob / FieldElementsPerCell

	// BytesPerFieldElement is the canonical big-endian scalar encoding size.
	BytesPerFieldElement = 32

	// BytesPerBlob is the byte length of a blob.
	BytesPerBlob = FieldElementsPerBlob * BytesPerFieldElement

	// BytesPerCell is the byte length of one cell under the standard
	// parameters. The per-setup stride lives in setup.Settings; this
	// constant is what every populate path assigns to it.
	BytesPerCell = FieldElementsPerCell * BytesPerFieldElement

	// NumG1Points is the number of G1 points in the trusted setup, one per
	// blob field element.
	NumG1Points = FieldElementsPerBlob

	// NumG2Points is the degree bound of the setup: 65 G2 powers.
	NumG2Points = 65

	// BytesPerCompressedG1 is the size of a compressed G1 point (ZCash
	// serialization, as used for KZG commitments and proofs).
	BytesPerCompressedG1 = 48

	// BytesPerCompressedG2 is the size of a compressed G2 point.
	BytesPerCompressedG2 = 96

	// BytesPerProof is the encoded size of one cell proof.
	BytesPerProof = BytesPerCompressedG1
)
