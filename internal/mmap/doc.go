// Package mmap provides read-only memory-mapped access to chunk objects.
//
// The local blob store serves decoders through View, which maps large
// objects for the duration of a callback instead of copying them into the
// heap:
//
//	err := mmap.View("2/0/0/1/3/7", func(b []byte) error {
//	    raw, err = c.Decode(b, want)
//	    return err
//	})
//
// Open exposes the mapping itself. Bytes is valid only until Close.
package mmap
