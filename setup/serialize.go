package setup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/eth2030/blobkzg/fk20"
	"github.com/eth2030/blobkzg/params"
)

// The snapshot format is a same-host cache, not an interchange format: field
// elements and curve points are dumped as raw native-endian limbs, and the
// header stamps the writing platform's byte order and word size so a
// mismatched reader rejects the data instead of misparsing it.

// Serialization errors; all header and shape mismatches wrap ErrBadArgs.
var (
	ErrHeaderTooShort = fmt.Errorf("%w: data shorter than snapshot header", ErrBadArgs)
	ErrBadMagic       = fmt.Errorf("%w: bad snapshot magic tag", ErrBadArgs)
	ErrBadVersion     = fmt.Errorf("%w: unsupported snapshot version", ErrBadArgs)
	ErrBadEndianness  = fmt.Errorf("%w: snapshot written on a platform with different byte order", ErrBadArgs)
	ErrBadWordSize    = fmt.Errorf("%w: snapshot written on a platform with different word size", ErrBadArgs)
	ErrTruncated      = fmt.Errorf("%w: snapshot truncated", ErrBadArgs)
	ErrTablesInvalid  = fmt.Errorf("%w: snapshot table scalars are inconsistent", ErrBadArgs)
)

const (
	snapshotVersion = 1

	endiannessBig    = 1
	endiannessLittle = 2

	headerSize = 7 // magic (4) + version + endianness + wordsize

	// Raw limb sizes of the serialized representations.
	serializedFrSize = fr.Limbs * 8         // 32
	serializedG1Size = 2 * 6 * 8            // affine X, Y over Fp: 96
	serializedG2Size = 2 * serializedG1Size // affine X, Y over Fp2: 192
)

var snapshotMagic = [4]byte{'K', 'Z', 'G', 0}

// maxWBits bounds the MSM window width; wider windows would need multi-
// gigabyte tables.
const maxWBits = 16

// tableSizeForWBits is the byte length of one table row: every window
// multiple of every in-cell point in raw limb form.
func tableSizeForWBits(wbits uint64) uint64 {
	return uint64(params.FieldElementsPerCell) * ((uint64(1) << wbits) - 1) * serializedG1Size
}

// hostEndianness returns the running platform's byte-order stamp.
func hostEndianness() byte {
	var probe [8]byte
	binary.NativeEndian.PutUint64(probe[:], 1)
	if probe[0] == 1 {
		return endiannessLittle
	}
	return endiannessBig
}

// hostWordSize returns the running platform's word size in bytes.
func hostWordSize() byte {
	return byte(bits.UintSize / 8)
}

// wordBytes is the serialized size of the scalar tuning parameters.
func wordBytes() int {
	return int(hostWordSize())
}

// serializedSize computes the exact snapshot length for s.
func (s *Settings) serializedSize() int {
	total := headerSize
	total += 3 * wordBytes() // wbits, scratch_size, table_size
	total += (params.FieldElementsPerExtBlob + 1) * serializedFrSize
	total += params.FieldElementsPerExtBlob * serializedFrSize
	total += (params.FieldElementsPerExtBlob + 1) * serializedFrSize
	total += params.NumG1Points * serializedG1Size
	total += params.NumG1Points * serializedG1Size
	total += params.NumG2Points * serializedG2Size
	total += params.CellsPerExtBlob * params.FieldElementsPerCell * serializedG1Size
	if s.WBits != 0 && s.Tables != nil {
		total += params.CellsPerExtBlob * int(s.TableSize)
	}
	return total
}

// ---------------------------------------------------------------------------
// Cursor helpers
// ---------------------------------------------------------------------------

// snapWriter appends fixed-order fields to a preallocated buffer.
type snapWriter struct {
	buf []byte
	off int
}

func (w *snapWriter) bytes(p []byte) {
	copy(w.buf[w.off:], p)
	w.off += len(p)
}

func (w *snapWriter) word(v uint64) {
	if wordBytes() == 8 {
		binary.NativeEndian.PutUint64(w.buf[w.off:], v)
	} else {
		binary.NativeEndian.PutUint32(w.buf[w.off:], uint32(v))
	}
	w.off += wordBytes()
}

func (w *snapWriter) limbs(limbs []uint64) {
	for _, l := range limbs {
		binary.NativeEndian.PutUint64(w.buf[w.off:], l)
		w.off += 8
	}
}

func (w *snapWriter) fr(e *fr.Element) { w.limbs(e[:]) }

func (w *snapWriter) g1(p *bls12381.G1Affine) {
	w.limbs(p.X[:])
	w.limbs(p.Y[:])
}

func (w *snapWriter) g2(p *bls12381.G2Affine) {
	w.limbs(p.X.A0[:])
	w.limbs(p.X.A1[:])
	w.limbs(p.Y.A0[:])
	w.limbs(p.Y.A1[:])
}

// snapReader advances a cursor over snapshot data, failing with ErrTruncated
// once the remaining bytes cannot satisfy a read. After the first failure
// every subsequent read is a no-op returning the sticky error.
type snapReader struct {
	buf []byte
	off int
	err error
}

func (r *snapReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	// Sizes read from the stream can overflow int; a negative n must fail
	// like any other short read instead of producing a bad slice bound.
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrTruncated
		return nil
	}
	p := r.buf[r.off : r.off+n]
	r.off += n
	return p
}

func (r *snapReader) word() uint64 {
	p := r.take(wordBytes())
	if p == nil {
		return 0
	}
	if wordBytes() == 8 {
		return binary.NativeEndian.Uint64(p)
	}
	return uint64(binary.NativeEndian.Uint32(p))
}

func (r *snapReader) limbs(limbs []uint64) {
	p := r.take(8 * len(limbs))
	if p == nil {
		return
	}
	for i := range limbs {
		limbs[i] = binary.NativeEndian.Uint64(p[8*i:])
	}
}

func (r *snapReader) fr(e *fr.Element) { r.limbs(e[:]) }

func (r *snapReader) g1(p *bls12381.G1Affine) {
	r.limbs(p.X[:])
	r.limbs(p.Y[:])
}

func (r *snapReader) g2(p *bls12381.G2Affine) {
	r.limbs(p.X.A0[:])
	r.limbs(p.X.A1[:])
	r.limbs(p.Y.A0[:])
	r.limbs(p.Y.A1[:])
}

// ---------------------------------------------------------------------------
// Serialize / Deserialize
// ---------------------------------------------------------------------------

// Serialize writes s to its binary snapshot form: the compatibility header,
// the three tuning scalars, then every owned sequence in fixed order. Tables
// are written only when WBits != 0. The output is readable only on a
// platform with the same byte order and word size.
func (s *Settings) Serialize() ([]byte, error) {
	if !s.IsPopulated() {
		return nil, ErrNotPopulated
	}

	w := &snapWriter{buf: make([]byte, s.serializedSize())}

	w.bytes(snapshotMagic[:])
	w.bytes([]byte{snapshotVersion, hostEndianness(), hostWordSize()})
	w.word(s.WBits)
	w.word(s.ScratchSize)
	w.word(s.TableSize)

	for i := range s.RootsOfUnity {
		w.fr(&s.RootsOfUnity[i])
	}
	for i := range s.BRPRootsOfUnity {
		w.fr(&s.BRPRootsOfUnity[i])
	}
	for i := range s.ReverseRootsOfUnity {
		w.fr(&s.ReverseRootsOfUnity[i])
	}
	for i := range s.G1ValuesMonomial {
		w.g1(&s.G1ValuesMonomial[i])
	}
	for i := range s.G1ValuesLagrangeBRP {
		w.g1(&s.G1ValuesLagrangeBRP[i])
	}
	for i := range s.G2ValuesMonomial {
		w.g2(&s.G2ValuesMonomial[i])
	}
	for i := range s.XExtFFTColumns {
		for j := range s.XExtFFTColumns[i] {
			w.g1(&s.XExtFFTColumns[i][j])
		}
	}
	if s.WBits != 0 {
		for i := range s.Tables {
			w.bytes(s.Tables[i])
		}
	}

	if w.off != len(w.buf) {
		return nil, fmt.Errorf("%w: serialized %d of %d bytes", ErrInternal, w.off, len(w.buf))
	}
	return w.buf, nil
}

// Deserialize replaces s with the Settings encoded in data. s is
// re-initialized first, so a failed deserialization always leaves it in a
// state Free can handle; on any mid-stream failure everything read so far is
// released and s is back in the Init state. Data from a platform with a
// different byte order or word size is rejected outright, never partially
// parsed.
func (s *Settings) Deserialize(data []byte) error {
	s.Init()

	if len(data) < headerSize {
		return ErrHeaderTooShort
	}
	if !bytes.Equal(data[0:4], snapshotMagic[:]) {
		return ErrBadMagic
	}
	if data[4] != snapshotVersion {
		return ErrBadVersion
	}
	if data[5] != hostEndianness() {
		return ErrBadEndianness
	}
	if data[6] != hostWordSize() {
		return ErrBadWordSize
	}

	r := &snapReader{buf: data, off: headerSize}
	s.WBits = r.word()
	s.ScratchSize = r.word()
	s.TableSize = r.word()
	if r.err != nil {
		s.Free()
		return r.err
	}

	// The table scalars must describe a setup this code could have written:
	// no table size without tables, and a size that is exactly the fixed
	// function of the window width. Anything else is rejected before any
	// sequence is allocated, so a crafted size can never drive a read.
	if s.WBits == 0 && s.TableSize != 0 {
		s.Free()
		return ErrTablesInvalid
	}
	if s.WBits != 0 && (s.WBits > maxWBits || s.TableSize != tableSizeForWBits(s.WBits)) {
		s.Free()
		return ErrTablesInvalid
	}

	s.allocSequences()
	for i := range s.RootsOfUnity {
		r.fr(&s.RootsOfUnity[i])
	}
	for i := range s.BRPRootsOfUnity {
		r.fr(&s.BRPRootsOfUnity[i])
	}
	for i := range s.ReverseRootsOfUnity {
		r.fr(&s.ReverseRootsOfUnity[i])
	}
	for i := range s.G1ValuesMonomial {
		r.g1(&s.G1ValuesMonomial[i])
	}
	for i := range s.G1ValuesLagrangeBRP {
		r.g1(&s.G1ValuesLagrangeBRP[i])
	}
	for i := range s.G2ValuesMonomial {
		r.g2(&s.G2ValuesMonomial[i])
	}
	for i := range s.XExtFFTColumns {
		for j := range s.XExtFFTColumns[i] {
			r.g1(&s.XExtFFTColumns[i][j])
		}
	}
	if s.WBits != 0 {
		s.Tables = make([][]byte, params.CellsPerExtBlob)
		for i := range s.Tables {
			entry := r.take(int(s.TableSize))
			if entry == nil {
				break
			}
			s.Tables[i] = append([]byte(nil), entry...)
		}
	}

	if r.err != nil {
		err := r.err
		s.Free()
		return err
	}

	if s.WBits != 0 {
		if err := s.decodeRowTables(); err != nil {
			s.Free()
			return err
		}
	}

	s.setCellStride()
	return nil
}

// decodeRowTables parses the raw table bytes into the per-row window
// multiples the FK20 row MSM consumes. The wbits and table_size scalars
// must already be validated against each other.
func (s *Settings) decodeRowTables() error {
	multiples := (uint64(1) << s.WBits) - 1
	rows := make([][][]bls12381.G1Affine, len(s.Tables))
	for row, table := range s.Tables {
		r := &snapReader{buf: table}
		points := make([][]bls12381.G1Affine, params.FieldElementsPerCell)
		for i := range points {
			points[i] = make([]bls12381.G1Affine, multiples)
			for m := range points[i] {
				r.g1(&points[i][m])
			}
		}
		if r.err != nil || r.off != len(table) {
			return fmt.Errorf("%w: table row %d does not decode", ErrTablesInvalid, row)
		}
		rows[row] = points
	}
	s.rowTables = &fk20.RowTables{WBits: s.WBits, Multiples: rows}
	return nil
}
