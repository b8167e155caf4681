package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"
)

// Blosc1 frame layout.
const (
	bloscHeaderSize = 16
	bloscVersion    = 2
	bloscVersionLZ4 = 1

	bloscDoShuffle    = 0x01
	bloscMemcpyed     = 0x02
	bloscDoBitShuffle = 0x04
	bloscDontSplit    = 0x10

	bloscMaxSplits     = 16
	bloscMinBufferSize = 128

	// DefaultBloscBlockSize is the block size Blosc.Encode splits frames into.
	DefaultBloscBlockSize = 32 << 10
)

// Compressor codes stored in bits 5-7 of the flags byte.
const (
	bloscBloscLZ = iota
	bloscLZ4
	bloscSnappy
	bloscZlib
	bloscZstd
)

var (
	errBloscCorrupt     = errors.New("blosc: corrupt frame")
	errBloscUnsupported = errors.New("blosc: unsupported frame")
)

// Blosc is the blosc1 frame codec used by most Zarr v2 volumes.
//
// Decode reads frames compressed with lz4, lz4hc, snappy, zlib or zstd,
// with or without byte shuffle. Frames using the blosclz compressor or bit
// shuffle are rejected. Encode writes byte-shuffled lz4 frames.
type Blosc struct {
	// TypeSize is the element width used for shuffling. 0 means 2.
	TypeSize int
	// BlockSize is the uncompressed block size. 0 means DefaultBloscBlockSize.
	BlockSize int
}

// Name returns "blosc".
func (Blosc) Name() string { return "blosc" }

// Encode compresses src into a blosc1 frame.
func (b Blosc) Encode(src []byte) ([]byte, error) {
	typesize := b.TypeSize
	if typesize <= 0 {
		typesize = 2
	}
	if typesize > 255 {
		return nil, fmt.Errorf("blosc: type size %d out of range", typesize)
	}
	blocksize := b.BlockSize
	if blocksize <= 0 {
		blocksize = DefaultBloscBlockSize
	}
	blocksize = max(blocksize/typesize*typesize, typesize)
	blocksize = min(blocksize, len(src))

	if len(src) == 0 {
		return bloscMemcpy(src, typesize), nil
	}

	nblocks := (len(src) + blocksize - 1) / blocksize
	dst := make([]byte, bloscHeaderSize+4*nblocks, bloscHeaderSize+4*nblocks+len(src))
	dst[0] = bloscVersion
	dst[1] = bloscVersionLZ4
	dst[2] = bloscDoShuffle | bloscLZ4<<5
	dst[3] = byte(typesize)
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(src)))
	binary.LittleEndian.PutUint32(dst[8:], uint32(blocksize))

	var (
		c        lz4.Compressor
		shuffled = make([]byte, blocksize)
		scratch  = make([]byte, lz4.CompressBlockBound(blocksize))
	)
	for j := range nblocks {
		block := src[j*blocksize : min((j+1)*blocksize, len(src))]
		binary.LittleEndian.PutUint32(dst[bloscHeaderSize+4*j:], uint32(len(dst)))

		buf := shuffled[:len(block)]
		shuffle(buf, block, typesize)

		nsplits := bloscSplits(0, typesize, len(block), len(block) < blocksize)
		neblock := len(block) / nsplits
		for s := range nsplits {
			stream := buf[s*neblock : (s+1)*neblock]
			n, err := c.CompressBlock(stream, scratch)
			if err != nil {
				return nil, err
			}
			if n == 0 || n >= neblock {
				dst = binary.LittleEndian.AppendUint32(dst, uint32(neblock))
				dst = append(dst, stream...)
				continue
			}
			dst = binary.LittleEndian.AppendUint32(dst, uint32(n))
			dst = append(dst, scratch[:n]...)
		}
		if len(dst) > len(src)+bloscHeaderSize {
			return bloscMemcpy(src, typesize), nil
		}
	}
	binary.LittleEndian.PutUint32(dst[12:], uint32(len(dst)))
	return dst, nil
}

// Decode decompresses a blosc1 frame. sizeHint is not consulted; the frame
// header carries the decoded length.
func (Blosc) Decode(src []byte, _ int) ([]byte, error) {
	if len(src) < bloscHeaderSize {
		return nil, errBloscCorrupt
	}
	flags := src[2]
	typesize := int(src[3])
	nbytes := int(binary.LittleEndian.Uint32(src[4:]))
	blocksize := int(binary.LittleEndian.Uint32(src[8:]))
	cbytes := int(binary.LittleEndian.Uint32(src[12:]))
	if cbytes < bloscHeaderSize || cbytes > len(src) || nbytes < 0 {
		return nil, errBloscCorrupt
	}
	src = src[:cbytes]

	if flags&bloscMemcpyed != 0 {
		if len(src) < bloscHeaderSize+nbytes {
			return nil, errBloscCorrupt
		}
		out := make([]byte, nbytes)
		copy(out, src[bloscHeaderSize:])
		return out, nil
	}
	if nbytes == 0 {
		return []byte{}, nil
	}
	if flags&bloscDoBitShuffle != 0 && typesize > 1 {
		return nil, fmt.Errorf("%w: bit shuffle", errBloscUnsupported)
	}
	if blocksize <= 0 || typesize == 0 {
		return nil, errBloscCorrupt
	}

	compcode := int(flags >> 5)
	decompress, err := bloscDecompressor(compcode)
	if err != nil {
		return nil, err
	}

	nblocks := (nbytes + blocksize - 1) / blocksize
	if len(src) < bloscHeaderSize+4*nblocks {
		return nil, errBloscCorrupt
	}
	out := make([]byte, nbytes)
	tmp := make([]byte, blocksize)
	for j := range nblocks {
		start := int(binary.LittleEndian.Uint32(src[bloscHeaderSize+4*j:]))
		if start < bloscHeaderSize+4*nblocks || start > len(src) {
			return nil, errBloscCorrupt
		}
		bsize := min(blocksize, nbytes-j*blocksize)
		leftover := bsize < blocksize

		nsplits := bloscSplits(flags, typesize, bsize, leftover)
		neblock := bsize / nsplits
		pos := start
		for s := range nsplits {
			if pos+4 > len(src) {
				return nil, errBloscCorrupt
			}
			csize := int(binary.LittleEndian.Uint32(src[pos:]))
			pos += 4
			if csize < 0 || pos+csize > len(src) {
				return nil, errBloscCorrupt
			}
			stream := tmp[s*neblock : (s+1)*neblock]
			if csize == neblock {
				copy(stream, src[pos:pos+csize])
			} else if err := decompress(stream, src[pos:pos+csize]); err != nil {
				return nil, err
			}
			pos += csize
		}

		block := out[j*blocksize : j*blocksize+bsize]
		if flags&bloscDoShuffle != 0 && typesize > 1 {
			unshuffle(block, tmp[:bsize], typesize)
		} else {
			copy(block, tmp[:bsize])
		}
	}
	return out, nil
}

func bloscMemcpy(src []byte, typesize int) []byte {
	dst := make([]byte, bloscHeaderSize, bloscHeaderSize+len(src))
	dst[0] = bloscVersion
	dst[1] = bloscVersionLZ4
	dst[2] = bloscMemcpyed | bloscLZ4<<5
	dst[3] = byte(typesize)
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(src)))
	binary.LittleEndian.PutUint32(dst[8:], uint32(len(src)))
	binary.LittleEndian.PutUint32(dst[12:], uint32(bloscHeaderSize+len(src)))
	return append(dst, src...)
}

// bloscSplits returns how many independently compressed streams a block of
// bsize bytes is stored as.
func bloscSplits(flags byte, typesize, bsize int, leftover bool) int {
	if flags&bloscDontSplit == 0 && typesize <= bloscMaxSplits &&
		bsize/typesize >= bloscMinBufferSize && !leftover {
		return typesize
	}
	return 1
}

func bloscDecompressor(compcode int) (func(dst, src []byte) error, error) {
	exact := func(dst []byte, got []byte, err error) error {
		if err != nil {
			return err
		}
		if len(got) != len(dst) {
			return fmt.Errorf("%w: stream is %d bytes, want %d", errBloscCorrupt, len(got), len(dst))
		}
		copy(dst, got)
		return nil
	}

	switch compcode {
	case bloscLZ4:
		return func(dst, src []byte) error {
			n, err := lz4.UncompressBlock(src, dst)
			return exact(dst, dst[:n], err)
		}, nil
	case bloscSnappy:
		return func(dst, src []byte) error {
			got, err := snappy.Decode(nil, src)
			return exact(dst, got, err)
		}, nil
	case bloscZlib:
		return func(dst, src []byte) error {
			got, err := Zlib{}.Decode(src, len(dst))
			return exact(dst, got, err)
		}, nil
	case bloscZstd:
		return func(dst, src []byte) error {
			got, err := Zstd{}.Decode(src, len(dst))
			return exact(dst, got, err)
		}, nil
	case bloscBloscLZ:
		return nil, fmt.Errorf("%w: blosclz compressor", errBloscUnsupported)
	default:
		return nil, fmt.Errorf("%w: compressor code %d", errBloscUnsupported, compcode)
	}
}

// shuffle groups byte k of every element together. Trailing bytes that do
// not form a whole element are copied unchanged.
func shuffle(dst, src []byte, typesize int) {
	n := len(src) / typesize
	if typesize <= 1 || n == 0 {
		copy(dst, src)
		return
	}
	for i := range n {
		for k := range typesize {
			dst[k*n+i] = src[i*typesize+k]
		}
	}
	copy(dst[n*typesize:], src[n*typesize:])
}

func unshuffle(dst, src []byte, typesize int) {
	n := len(src) / typesize
	if typesize <= 1 || n == 0 {
		copy(dst, src)
		return
	}
	for i := range n {
		for k := range typesize {
			dst[i*typesize+k] = src[k*n+i]
		}
	}
	copy(dst[n*typesize:], src[n*typesize:])
}
