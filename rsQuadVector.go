package qwt

import (
	"github.com/cockroachdb/errors"
	"github.com/ugorji/go/codec"
)

const (
	// blocksPerSuper is the number of rank blocks per superblock. With 16-bit
	// in-superblock counters the largest stored value is SUPER-BLOCK symbols:
	// 16128 for 256-symbol blocks, 32256 for 512-symbol blocks.
	blocksPerSuper = 64

	// selectSampleRate is the occurrence spacing of select samples.
	selectSampleRate = 1 << 13
)

// DefaultBlockSize is the rank block size used when Config leaves it zero.
const DefaultBlockSize = 256

// ErrBlockSize is returned when a configured block size is not 256 or 512.
var ErrBlockSize = errors.New("qwt: block size must be 256 or 512 symbols")

// RSQuadVector is a QuadVector augmented with rank and select support.
//
// Rank counters come in two layers: one 64-bit cumulative counter per symbol
// per superblock, and one 16-bit counter per symbol per block holding the
// count from the start of the enclosing superblock. The four counters of a
// block sit next to each other, so a rank query touches one superblock
// entry, one block entry and at most one block of symbol data.
//
// Select keeps, per symbol, the position of every selectSampleRate-th
// occurrence. A query starts from the nearest sample, hops superblock and
// block counters, then finishes with a word scan.
type RSQuadVector struct {
	qv        QuadVector
	blockSize uint64
	supers    []uint64 // 4 per superblock, cumulative from the start
	blocks    []uint16 // 4 per block, cumulative within the superblock
	samples   [4][]uint64
	occs      [4]uint64
}

// NewRSQuadVector builds rank/select support over qv, taking ownership of
// its storage. blockSize must be 256 or 512 symbols.
func NewRSQuadVector(qv *QuadVector, blockSize int) (*RSQuadVector, error) {
	if blockSize != 256 && blockSize != 512 {
		return nil, errors.Wrapf(ErrBlockSize, "got %d", blockSize)
	}

	r := &RSQuadVector{
		qv:        *qv,
		blockSize: uint64(blockSize),
	}
	r.build()
	return r, nil
}

func (r *RSQuadVector) build() {
	n := r.qv.n
	bs := r.blockSize
	superSize := bs * blocksPerSuper
	numBlocks := n/bs + 1
	numSupers := n/superSize + 1

	r.supers = make([]uint64, 4*numSupers)
	r.blocks = make([]uint16, 4*numBlocks)

	var global, inSuper [4]uint64
	for b := uint64(0); b < numBlocks; b++ {
		if b%blocksPerSuper == 0 {
			sb := b / blocksPerSuper
			for s := 0; s < 4; s++ {
				r.supers[sb*4+uint64(s)] = global[s]
				inSuper[s] = 0
			}
		}
		for s := 0; s < 4; s++ {
			r.blocks[b*4+uint64(s)] = uint16(inSuper[s])
		}

		end := (b + 1) * bs
		if end > n {
			end = n
		}
		for lane := b * bs; lane < end; lane += lanesPerWord {
			word := r.qv.word(lane >> 5)
			lanes := end - lane
			if lanes > lanesPerWord {
				lanes = lanesPerWord
			}
			for s := uint8(0); s < 4; s++ {
				cnt := pop2Prefix(word, s, lanes)
				if cnt > 0 {
					// At most one occurrence index divisible by the sample
					// rate can fall inside a single word.
					next := (r.occs[s] + selectSampleRate - 1) / selectSampleRate * selectSampleRate
					if next < r.occs[s]+cnt {
						pos := lane + select2InWord(word, s, next-r.occs[s]+1)
						r.samples[s] = append(r.samples[s], pos)
					}
				}
				global[s] += cnt
				inSuper[s] += cnt
				r.occs[s] += cnt
			}
		}
	}

	for s := 0; s < 4; s++ {
		if extra := cap(r.samples[s]) - len(r.samples[s]); extra > 0 {
			trimmed := make([]uint64, len(r.samples[s]))
			copy(trimmed, r.samples[s])
			r.samples[s] = trimmed
		}
	}
}

// Len returns the number of symbols in the indexed vector.
func (r *RSQuadVector) Len() uint64 {
	return r.qv.n
}

// Get returns the symbol at position i, or false when i >= Len().
func (r *RSQuadVector) Get(i uint64) (uint8, bool) {
	return r.qv.Get(i)
}

// Occs returns the total number of occurrences of s.
func (r *RSQuadVector) Occs(s uint8) uint64 {
	return r.occs[s&3]
}

// Rank returns the number of occurrences of s in positions [0, i).
// The second result is false when i > Len() or s > 3.
func (r *RSQuadVector) Rank(i uint64, s uint8) (uint64, bool) {
	if i > r.qv.n || s > 3 {
		return 0, false
	}
	return r.rank(i, s), true
}

// rank answers a rank query for i in [0, n] and s in 0..3.
func (r *RSQuadVector) rank(i uint64, s uint8) uint64 {
	b := i / r.blockSize
	sb := b / blocksPerSuper
	res := r.supers[sb*4+uint64(s)] + uint64(r.blocks[b*4+uint64(s)])

	lane := b * r.blockSize
	for ; lane+lanesPerWord <= i; lane += lanesPerWord {
		res += pop2(r.qv.word(lane>>5), s)
	}
	if rem := i - lane; rem > 0 {
		res += pop2Prefix(r.qv.word(lane>>5), s, rem)
	}
	return res
}

// Select returns the position of the j-th (1-indexed) occurrence of s.
// The second result is false when j == 0, j exceeds the total number of
// occurrences of s, or s > 3.
func (r *RSQuadVector) Select(j uint64, s uint8) (uint64, bool) {
	if s > 3 || j == 0 || j > r.occs[s] {
		return 0, false
	}
	return r.sel(j, s), true
}

// sel answers a select query known to have an answer.
func (r *RSQuadVector) sel(j uint64, s uint8) uint64 {
	superSize := r.blockSize * blocksPerSuper
	numSupers := uint64(len(r.supers)) / 4
	numBlocks := uint64(len(r.blocks)) / 4

	sb := r.samples[s][(j-1)/selectSampleRate] / superSize
	for sb+1 < numSupers && r.supers[(sb+1)*4+uint64(s)] < j {
		sb++
	}

	// Occurrences of s still to skip within the superblock.
	t := j - r.supers[sb*4+uint64(s)]

	b := sb * blocksPerSuper
	last := b + blocksPerSuper
	if last > numBlocks {
		last = numBlocks
	}
	for b+1 < last && uint64(r.blocks[(b+1)*4+uint64(s)]) < t {
		b++
	}
	t -= uint64(r.blocks[b*4+uint64(s)])

	lane := b * r.blockSize
	for {
		word := r.qv.word(lane >> 5)
		lanes := r.qv.n - lane
		if lanes > lanesPerWord {
			lanes = lanesPerWord
		}
		cnt := pop2Prefix(word, s, lanes)
		if t <= cnt {
			return lane + select2InWord(word, s, t)
		}
		t -= cnt
		lane += lanesPerWord
	}
}

// SpaceUsage returns the number of bytes held by the vector and its
// rank/select support.
func (r *RSQuadVector) SpaceUsage() uint64 {
	space := uint64(r.qv.bits.numWords()) * 8
	space += uint64(len(r.supers)) * 8
	space += uint64(len(r.blocks)) * 2
	for s := 0; s < 4; s++ {
		space += uint64(len(r.samples[s])) * 8
	}
	return space + 8*8 // n, blockSize, occs, slice lengths
}

// MarshalBinary encodes the vector and its support into a binary form.
func (r *RSQuadVector) MarshalBinary() (out []byte, err error) {
	var bh codec.MsgpackHandle
	enc := codec.NewEncoderBytes(&out, &bh)
	for _, v := range []interface{}{
		r.qv.n, r.blockSize, r.qv.bits.words, r.supers, r.blocks,
	} {
		if err = enc.Encode(v); err != nil {
			return
		}
	}
	for s := 0; s < 4; s++ {
		if err = enc.Encode(r.samples[s]); err != nil {
			return
		}
	}
	for s := 0; s < 4; s++ {
		if err = enc.Encode(r.occs[s]); err != nil {
			return
		}
	}
	return
}

// UnmarshalBinary decodes a vector generated by MarshalBinary. All decoded
// slices are allocated at their logical length.
func (r *RSQuadVector) UnmarshalBinary(in []byte) (err error) {
	var bh codec.MsgpackHandle
	dec := codec.NewDecoderBytes(in, &bh)
	if err = dec.Decode(&r.qv.n); err != nil {
		return
	}
	if err = dec.Decode(&r.blockSize); err != nil {
		return
	}
	if err = dec.Decode(&r.qv.bits.words); err != nil {
		return
	}
	r.qv.bits.n = 2 * r.qv.n
	if err = dec.Decode(&r.supers); err != nil {
		return
	}
	if err = dec.Decode(&r.blocks); err != nil {
		return
	}
	for s := 0; s < 4; s++ {
		if err = dec.Decode(&r.samples[s]); err != nil {
			return
		}
	}
	for s := 0; s < 4; s++ {
		if err = dec.Decode(&r.occs[s]); err != nil {
			return
		}
	}
	return
}
