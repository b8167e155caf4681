package cache

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Resident returns the Morton codes of the Ready chunks of one timepoint,
// channel and level.
func (c *Cache) Resident(timepoint, channel, level int) *roaring64.Bitmap {
	bm := roaring64.New()
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.state != StateReady || key.Level != level || key.Timepoint != timepoint || key.Channel != channel {
				continue
			}
			if code, ok := key.Coord.Morton(); ok {
				bm.Add(code)
			}
		}
		sh.mu.Unlock()
	}
	return bm
}
