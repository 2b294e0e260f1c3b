package qwt

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// Serialized stream layout: a 4-byte magic, the payload length as a
// little-endian uint64, the msgpack payload, and the xxhash64 digest of the
// payload as a little-endian uint64.
var streamMagic = [4]byte{'Q', 'W', 'T', '1'}

var (
	// ErrBadMagic is returned when a stream does not start with the
	// serialization magic.
	ErrBadMagic = errors.New("qwt: bad magic, not a serialized index")
	// ErrChecksum is returned when the payload digest does not match.
	ErrChecksum = errors.New("qwt: checksum mismatch")
	// ErrSymbolWidth is returned when a stream's symbol width regime does
	// not match the requested symbol type.
	ErrSymbolWidth = errors.New("qwt: symbol width mismatch")
)

// Serialize writes the tree to w in a framed, checksummed form readable by
// Deserialize.
func (t *QuadWaveletTree[S]) Serialize(w io.Writer) error {
	payload, err := t.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "qwt: encode")
	}
	if _, err := w.Write(streamMagic[:]); err != nil {
		return errors.Wrap(err, "qwt: write magic")
	}
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(payload)))
	if _, err := w.Write(u64[:]); err != nil {
		return errors.Wrap(err, "qwt: write length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "qwt: write payload")
	}
	binary.LittleEndian.PutUint64(u64[:], xxhash.Sum64(payload))
	if _, err := w.Write(u64[:]); err != nil {
		return errors.Wrap(err, "qwt: write checksum")
	}
	return nil
}

// Deserialize reads a tree serialized by Serialize. The stored symbol width
// regime must match S or ErrSymbolWidth is returned.
func Deserialize[S Symbol](r io.Reader) (*QuadWaveletTree[S], error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "qwt: read magic")
	}
	if magic != streamMagic {
		return nil, ErrBadMagic
	}
	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return nil, errors.Wrap(err, "qwt: read length")
	}
	payload := make([]byte, binary.LittleEndian.Uint64(u64[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "qwt: read payload")
	}
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return nil, errors.Wrap(err, "qwt: read checksum")
	}
	if binary.LittleEndian.Uint64(u64[:]) != xxhash.Sum64(payload) {
		return nil, ErrChecksum
	}
	t := new(QuadWaveletTree[S])
	if err := t.UnmarshalBinary(payload); err != nil {
		if errors.Is(err, ErrSymbolWidth) {
			return nil, err
		}
		return nil, errors.Wrap(err, "qwt: decode")
	}
	return t, nil
}
