package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload() []byte {
	b := make([]byte, 4096)
	for i := range 2048 {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(i%97))
	}
	return b
}

func TestCodecs_RoundTrip(t *testing.T) {
	src := payload()
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			enc, err := c.Encode(src)
			require.NoError(t, err)

			dec, err := c.Decode(enc, len(src))
			require.NoError(t, err)
			assert.Equal(t, src, dec)
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "null", "none", "RAW"} {
		c, err := ByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, "raw", c.Name())
	}

	_, err := ByName("lzma")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestLZ4_BareBlock(t *testing.T) {
	src := payload()
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	require.NoError(t, err)

	dec, err := LZ4{}.Decode(dst[:n], len(src))
	require.NoError(t, err)
	assert.Equal(t, src, dec)

	_, err = LZ4{}.Decode(dst[:n], 0)
	assert.Error(t, err)
}

func TestDecode_Corrupt(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xff, 0x00, 0x13}, 50)
	for _, name := range []string{"zstd", "gzip", "zlib", "snappy", "s2"} {
		c, err := ByName(name)
		require.NoError(t, err)
		_, err = c.Decode(garbage, 4096)
		assert.Error(t, err, name)
	}
}

func TestDecode_OversizedStream(t *testing.T) {
	src := payload()
	enc, err := Gzip{}.Encode(src)
	require.NoError(t, err)

	// Reads stop one byte past the hint.
	dec, err := Gzip{}.Decode(enc, 100)
	require.NoError(t, err)
	assert.Len(t, dec, 101)
}
