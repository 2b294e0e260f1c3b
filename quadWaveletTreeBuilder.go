package qwt

import (
	"github.com/cockroachdb/errors"
	"github.com/hillbig/rsdic"
)

// Config selects build-time parameters for a QuadWaveletTree.
type Config struct {
	// BlockSize is the rank block size in symbols, 256 or 512.
	// Zero means DefaultBlockSize. 512 halves the counter overhead at the
	// cost of a slightly longer in-block scan.
	BlockSize int
}

// New builds a QuadWaveletTree over vals with the default configuration.
// vals is consumed as mutable scratch: construction permutes it in place
// and its contents are unspecified afterwards. Callers that still need the
// sequence must clone it first.
func New[S Symbol](vals []S) (*QuadWaveletTree[S], error) {
	return NewWithConfig(vals, Config{})
}

// NewWithConfig is New with an explicit configuration.
func NewWithConfig[S Symbol](vals []S, cfg Config) (*QuadWaveletTree[S], error) {
	block := cfg.BlockSize
	if block == 0 {
		block = DefaultBlockSize
	}
	if block != 256 && block != 512 {
		return nil, errors.Wrapf(ErrBlockSize, "got %d", block)
	}

	n := uint64(len(vals))
	maxSym := maxSymbol(vals)
	width := bitLen(maxSym)
	if width < 2 {
		width = 2
	}

	t := &QuadWaveletTree[S]{
		num:    n,
		maxSym: maxSym,
		width:  width,
		block:  block,
	}

	scratch := make([]S, n)
	if width%2 == 1 {
		t.bin = buildBinaryLevel(vals, scratch, width-1)
	}

	numQuad := int(width / 2)
	t.levels = make([]*RSQuadVector, numQuad)
	t.prefixes = make([][4]uint64, numQuad)
	for l := 0; l < numQuad; l++ {
		shift := uint(2 * (numQuad - 1 - l))
		qv := NewQuadVector(n)
		var cnt [4]uint64
		for i, v := range vals {
			d := uint8(uint64(v)>>shift) & 3
			qv.Set(uint64(i), d)
			cnt[d]++
		}
		for s := 1; s < 4; s++ {
			t.prefixes[l][s] = t.prefixes[l][s-1] + cnt[s-1]
		}

		// Stable partition by this level's digit; the next level sees the
		// four child subranges contiguous and in digit order.
		var off [4]uint64
		copy(off[:], t.prefixes[l][:])
		for _, v := range vals {
			d := uint8(uint64(v)>>shift) & 3
			scratch[off[d]] = v
			off[d]++
		}
		copy(vals, scratch)

		rs, err := NewRSQuadVector(qv, block)
		if err != nil {
			return nil, err
		}
		t.levels[l] = rs
	}
	return t, nil
}

// buildBinaryLevel records bit number shift of every value into an rsdic
// bit vector and stably partitions vals by that bit, zeros first.
func buildBinaryLevel[S Symbol](vals, scratch []S, shift uint) *rsdic.RSDic {
	bin := rsdic.New()
	zeros := uint64(0)
	for _, v := range vals {
		bit := uint64(v)>>shift&1 == 1
		bin.PushBack(bit)
		if !bit {
			zeros++
		}
	}
	zi, oi := uint64(0), zeros
	for _, v := range vals {
		if uint64(v)>>shift&1 == 1 {
			scratch[oi] = v
			oi++
		} else {
			scratch[zi] = v
			zi++
		}
	}
	copy(vals, scratch)
	return bin
}

// Builder accumulates values one at a time before building a tree. It
// exists for callers that stream their input; New is the direct path.
type Builder[S Symbol] struct {
	vals []S
	cfg  Config
}

// NewBuilder returns an empty Builder with the default configuration.
func NewBuilder[S Symbol]() *Builder[S] {
	return &Builder[S]{}
}

// NewBuilderWithConfig returns an empty Builder with an explicit
// configuration.
func NewBuilderWithConfig[S Symbol](cfg Config) *Builder[S] {
	return &Builder[S]{cfg: cfg}
}

// PushBack appends val to the pending sequence.
func (b *Builder[S]) PushBack(val S) {
	b.vals = append(b.vals, val)
}

// Build constructs the tree over everything pushed so far. The builder's
// buffer is consumed; the builder must not be reused afterwards.
func (b *Builder[S]) Build() (*QuadWaveletTree[S], error) {
	vals := b.vals
	b.vals = nil
	return NewWithConfig(vals, b.cfg)
}
