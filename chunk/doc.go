// Package chunk defines the unit of production and caching: a Key naming one
// chunk of one level, the immutable Samples buffer holding its data, and the
// Producer capability that computes or fetches it.
package chunk
