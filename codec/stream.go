package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
)

// Gzip is the gzip codec.
type Gzip struct{}

// Name returns "gzip".
func (Gzip) Name() string { return "gzip" }

// Encode compresses src as a gzip member.
func (Gzip) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses a gzip stream.
func (Gzip) Decode(src []byte, sizeHint int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r, sizeHint)
}

// Zlib is the zlib codec.
type Zlib struct{}

// Name returns "zlib".
func (Zlib) Name() string { return "zlib" }

// Encode compresses src as a zlib stream.
func (Zlib) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses a zlib stream.
func (Zlib) Decode(src []byte, sizeHint int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r, sizeHint)
}

// Snappy is the snappy block codec.
type Snappy struct{}

// Name returns "snappy".
func (Snappy) Name() string { return "snappy" }

// Encode compresses src as a snappy block.
func (Snappy) Encode(src []byte) ([]byte, error) { return snappy.Encode(nil, src), nil }

// Decode decompresses a snappy block.
func (Snappy) Decode(src []byte, _ int) ([]byte, error) { return snappy.Decode(nil, src) }

// S2 is the S2 block codec, a snappy extension.
type S2 struct{}

// Name returns "s2".
func (S2) Name() string { return "s2" }

// Encode compresses src as an S2 block.
func (S2) Encode(src []byte) ([]byte, error) { return s2.Encode(nil, src), nil }

// Decode decompresses an S2 (or snappy) block.
func (S2) Decode(src []byte, _ int) ([]byte, error) { return s2.Decode(nil, src) }

// readAll reads r, reading at most one byte past sizeHint so oversized
// payloads are detectable without buffering them entirely.
func readAll(r io.Reader, sizeHint int) ([]byte, error) {
	if sizeHint > 0 {
		r = io.LimitReader(r, int64(sizeHint)+1)
	}
	buf := bytes.NewBuffer(make([]byte, 0, sizeHint))
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
