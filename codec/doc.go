// Package codec provides the named block-compression codecs used by chunked
// array stores.
//
// Codecs are looked up by the identifier stored in array metadata
// ("zstd", "lz4", "gzip", ...). Every codec can both encode and decode so
// that stores written by this module can be read back by it. Blosc reads the
// blosc1 frames of existing Zarr volumes and dispatches each stream to the
// lz4, snappy, zlib or zstd implementation.
package codec
