package chunk

import (
	"fmt"

	"github.com/hupe1980/volcache/pyramid"
)

// Key uniquely identifies one chunk: timepoint, channel, level and chunk
// coordinate. Keys are comparable and used directly as map keys.
type Key struct {
	Timepoint int
	Channel   int
	Level     int
	Coord     pyramid.ChunkCoord
}

// NewKey returns the key of coord at level for timepoint 0, channel 0.
func NewKey(level int, coord pyramid.ChunkCoord) Key {
	return Key{Level: level, Coord: coord}
}

func (k Key) String() string {
	return fmt.Sprintf("t%d/c%d/l%d%s", k.Timepoint, k.Channel, k.Level, k.Coord)
}
