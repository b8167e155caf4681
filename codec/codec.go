package codec

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownCodec is returned for codec identifiers without an implementation.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec compresses and decompresses whole blocks.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name returns the stable identifier of the codec.
	Name() string
	// Encode compresses src.
	Encode(src []byte) ([]byte, error)
	// Decode decompresses src. sizeHint is the expected decoded length, or 0
	// if unknown; it is a hint only and never validated here.
	Decode(src []byte, sizeHint int) ([]byte, error)
}

var registry = map[string]Codec{
	"raw":    Raw{},
	"zstd":   Zstd{},
	"lz4":    LZ4{},
	"gzip":   Gzip{},
	"zlib":   Zlib{},
	"snappy": Snappy{},
	"s2":     S2{},
	"blosc":  Blosc{},
}

// ByName returns a built-in codec by its identifier. The empty string and
// "null" select Raw, matching arrays stored without a compressor.
func ByName(name string) (Codec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "null" || name == "none" {
		return Raw{}, nil
	}
	if c, ok := registry[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// Names returns the identifiers of all built-in codecs.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Raw stores blocks uncompressed.
type Raw struct{}

// Name returns "raw".
func (Raw) Name() string { return "raw" }

// Encode returns a copy of src.
func (Raw) Encode(src []byte) ([]byte, error) { return slices.Clone(src), nil }

// Decode returns src unchanged.
func (Raw) Decode(src []byte, _ int) ([]byte, error) { return src, nil }
