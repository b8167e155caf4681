package codec

import (
	"encoding/binary"
	"errors"

	"github.com/pierrec/lz4/v4"
)

const lz4PrefixSize = 4

var errLZ4Truncated = errors.New("lz4: truncated block")

// LZ4 is the LZ4 block codec.
//
// Blocks are written with a 4-byte little-endian decoded-size prefix. Decode
// also accepts bare blocks without the prefix when a size hint is given.
type LZ4 struct{}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

// Encode compresses src into a size-prefixed block.
func (LZ4) Encode(src []byte) ([]byte, error) {
	dst := make([]byte, lz4PrefixSize+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(dst, uint32(len(src)))

	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst[lz4PrefixSize:])
	if err != nil {
		return nil, err
	}
	return dst[:lz4PrefixSize+n], nil
}

// Decode decompresses a prefixed or bare block.
func (LZ4) Decode(src []byte, sizeHint int) ([]byte, error) {
	if len(src) >= lz4PrefixSize {
		size := int(binary.LittleEndian.Uint32(src))
		if sizeHint <= 0 || size == sizeHint {
			return lz4Uncompress(src[lz4PrefixSize:], size)
		}
	}
	if sizeHint <= 0 {
		return nil, errLZ4Truncated
	}
	// Bare block; leave room so an oversized payload surfaces as a length
	// difference rather than a short-buffer error.
	return lz4Uncompress(src, 2*sizeHint)
}

func lz4Uncompress(src []byte, capacity int) ([]byte, error) {
	if capacity == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, capacity)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
