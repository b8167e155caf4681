package mmap

import "errors"

// MinMapSize is the smallest object View maps. Smaller objects are
// read with a plain read.
const MinMapSize = 64 << 10

// ErrInvalidSize is returned when the file size does not fit in memory.
var ErrInvalidSize = errors.New("mmap: invalid file size")
