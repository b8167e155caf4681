package pyramid

import "errors"

var (
	// ErrLevelOutOfRange is returned when a level is not in [0, NumLevels).
	ErrLevelOutOfRange = errors.New("level out of range")

	// ErrChunkCoordOutOfRange is returned when a chunk coordinate lies outside
	// the chunk grid of its level.
	ErrChunkCoordOutOfRange = errors.New("chunk coordinate out of range")

	// ErrInvalidGeometry is returned when level descriptors violate the
	// pyramid invariants.
	ErrInvalidGeometry = errors.New("invalid pyramid geometry")

	// ErrSingularTransform is returned when an affine transform cannot be inverted.
	ErrSingularTransform = errors.New("singular transform")
)
