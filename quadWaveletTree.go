package qwt

import (
	"github.com/cockroachdb/errors"
	"github.com/hillbig/rsdic"
	"github.com/ugorji/go/codec"
)

// maxQuadLevels bounds the tree depth: 32-bit symbols need at most 16
// quaternary digits.
const maxQuadLevels = 16

// QuadWaveletTree indexes an immutable sequence of symbols for access, rank
// and select queries. Each level stores the sequence's 2-bit digits at that
// level in an RSQuadVector; positions descend between levels through two
// rank queries per level.
//
// When the symbol width in bits is odd, the most significant bit gets a
// dedicated binary first level backed by an rsdic bit vector, and the
// remaining even number of bits descend through quad levels.
//
// Once built the tree is read-only and safe to share between goroutines.
type QuadWaveletTree[S Symbol] struct {
	bin      *rsdic.RSDic
	levels   []*RSQuadVector
	prefixes [][4]uint64
	num      uint64
	maxSym   uint64
	width    uint // representable symbol width in bits
	block    int
}

// Len returns the number of symbols in the indexed sequence.
func (t *QuadWaveletTree[S]) Len() uint64 {
	return t.num
}

// MaxSymbol returns the largest symbol observed at build time.
func (t *QuadWaveletTree[S]) MaxSymbol() uint64 {
	return t.maxSym
}

// Depth returns the number of levels, counting the binary first level when
// present.
func (t *QuadWaveletTree[S]) Depth() int {
	d := len(t.levels)
	if t.bin != nil {
		d++
	}
	return d
}

// BlockSize returns the rank block size the tree was built with.
func (t *QuadWaveletTree[S]) BlockSize() int {
	return t.block
}

// representable reports whether c fits in the tree's symbol width.
func (t *QuadWaveletTree[S]) representable(c S) bool {
	return uint64(c)>>t.width == 0
}

// digit returns the 2-bit digit of c consumed at quad level l.
func (t *QuadWaveletTree[S]) digit(c S, l int) uint8 {
	return uint8(uint64(c)>>(2*(len(t.levels)-1-l))) & 3
}

// Access returns the symbol at position i, or false when i >= Len().
func (t *QuadWaveletTree[S]) Access(i uint64) (S, bool) {
	if i >= t.num {
		return 0, false
	}
	val := uint64(0)
	p := i
	if t.bin != nil {
		if t.bin.Bit(p) {
			val = 1
			p = t.bin.ZeroNum() + t.bin.Rank(p, true)
		} else {
			p = t.bin.Rank(p, false)
		}
	}
	for l, lv := range t.levels {
		d := lv.qv.get(p)
		val = val<<2 | uint64(d)
		p = t.prefixes[l][d] + lv.rank(p, d)
	}
	return S(val), true
}

// Rank returns the number of occurrences of c in positions [0, i).
// The second result is false when i > Len() or c is wider than the tree
// can represent.
func (t *QuadWaveletTree[S]) Rank(i uint64, c S) (uint64, bool) {
	if i > t.num || !t.representable(c) {
		return 0, false
	}
	lo, hi := t.descend(c, 0, i)
	return hi - lo, true
}

// Count returns the total number of occurrences of c.
func (t *QuadWaveletTree[S]) Count(c S) uint64 {
	cnt, _ := t.Rank(t.num, c)
	return cnt
}

// descend maps the interval [lo, hi) at the top level down to c's leaf
// subrange.
func (t *QuadWaveletTree[S]) descend(c S, lo, hi uint64) (uint64, uint64) {
	if t.bin != nil {
		if uint64(c)>>(t.width-1)&1 == 1 {
			zn := t.bin.ZeroNum()
			lo = zn + t.bin.Rank(lo, true)
			hi = zn + t.bin.Rank(hi, true)
		} else {
			lo = t.bin.Rank(lo, false)
			hi = t.bin.Rank(hi, false)
		}
	}
	for l, lv := range t.levels {
		d := t.digit(c, l)
		lo = t.prefixes[l][d] + lv.rank(lo, d)
		hi = t.prefixes[l][d] + lv.rank(hi, d)
	}
	return lo, hi
}

// Select returns the position of the j-th (1-indexed) occurrence of c.
// The second result is false when j == 0, j exceeds the number of
// occurrences of c, or c is wider than the tree can represent.
func (t *QuadWaveletTree[S]) Select(j uint64, c S) (uint64, bool) {
	if j == 0 || !t.representable(c) {
		return 0, false
	}
	lo, hi := t.descend(c, 0, t.num)
	if j > hi-lo {
		return 0, false
	}

	var digits [maxQuadLevels]uint8
	for l := range t.levels {
		digits[l] = t.digit(c, l)
	}

	// Ascend: at each level the element's local rank inside its digit class
	// turns back into a position through one select query.
	p := lo + j - 1
	for l := len(t.levels) - 1; l >= 0; l-- {
		d := digits[l]
		p = t.levels[l].sel(p-t.prefixes[l][d]+1, d)
	}
	if t.bin != nil {
		if uint64(c)>>(t.width-1)&1 == 1 {
			p = t.bin.Select(p-t.bin.ZeroNum(), true)
		} else {
			p = t.bin.Select(p, false)
		}
	}
	return p, true
}

// SpaceUsage returns the number of bytes held by the tree's owned storage.
func (t *QuadWaveletTree[S]) SpaceUsage() uint64 {
	space := uint64(0)
	if t.bin != nil {
		space += uint64(t.bin.AllocSize())
	}
	for _, lv := range t.levels {
		space += lv.SpaceUsage()
	}
	space += uint64(len(t.prefixes)) * 4 * 8
	return space + 5*8 // num, maxSym, width, block, level count
}

// MarshalBinary encodes the tree into a binary form and returns the result.
func (t *QuadWaveletTree[S]) MarshalBinary() (out []byte, err error) {
	var bh codec.MsgpackHandle
	enc := codec.NewEncoderBytes(&out, &bh)
	if err = enc.Encode(symbolBits[S]()); err != nil {
		return
	}
	if err = enc.Encode(t.num); err != nil {
		return
	}
	if err = enc.Encode(t.maxSym); err != nil {
		return
	}
	if err = enc.Encode(t.width); err != nil {
		return
	}
	if err = enc.Encode(t.block); err != nil {
		return
	}
	if err = enc.Encode(t.bin != nil); err != nil {
		return
	}
	if t.bin != nil {
		if err = enc.Encode(t.bin); err != nil {
			return
		}
	}
	if err = enc.Encode(len(t.levels)); err != nil {
		return
	}
	for _, lv := range t.levels {
		if err = enc.Encode(lv); err != nil {
			return
		}
	}
	prefixes := make([]uint64, 0, 4*len(t.prefixes))
	for _, p := range t.prefixes {
		prefixes = append(prefixes, p[0], p[1], p[2], p[3])
	}
	err = enc.Encode(prefixes)
	return
}

// UnmarshalBinary decodes a tree from a binary form generated by
// MarshalBinary. The stored symbol width regime must match S.
func (t *QuadWaveletTree[S]) UnmarshalBinary(in []byte) (err error) {
	var bh codec.MsgpackHandle
	dec := codec.NewDecoderBytes(in, &bh)
	symBits := 0
	if err = dec.Decode(&symBits); err != nil {
		return
	}
	if symBits != symbolBits[S]() {
		return errors.Wrapf(ErrSymbolWidth, "stored %d-bit symbols, requested %d-bit", symBits, symbolBits[S]())
	}
	if err = dec.Decode(&t.num); err != nil {
		return
	}
	if err = dec.Decode(&t.maxSym); err != nil {
		return
	}
	if err = dec.Decode(&t.width); err != nil {
		return
	}
	if err = dec.Decode(&t.block); err != nil {
		return
	}
	hasBin := false
	if err = dec.Decode(&hasBin); err != nil {
		return
	}
	t.bin = nil
	if hasBin {
		t.bin = rsdic.New()
		if err = dec.Decode(t.bin); err != nil {
			return
		}
	}
	numLevels := 0
	if err = dec.Decode(&numLevels); err != nil {
		return
	}
	if numLevels < 1 || numLevels > maxQuadLevels {
		return errors.Newf("qwt: corrupt level count %d", numLevels)
	}
	t.levels = make([]*RSQuadVector, numLevels)
	for l := range t.levels {
		t.levels[l] = new(RSQuadVector)
		if err = dec.Decode(t.levels[l]); err != nil {
			return
		}
	}
	var prefixes []uint64
	if err = dec.Decode(&prefixes); err != nil {
		return
	}
	if len(prefixes) != 4*numLevels {
		return errors.Newf("qwt: corrupt prefix table length %d", len(prefixes))
	}
	t.prefixes = make([][4]uint64, numLevels)
	for l := range t.prefixes {
		copy(t.prefixes[l][:], prefixes[l*4:l*4+4])
	}
	return
}
