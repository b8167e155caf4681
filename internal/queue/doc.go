// Package queue provides the concurrent priority queue that feeds the chunk
// worker pool.
//
// Keys are unique: pushing a key that is already queued merges the requests,
// keeping the lower priority and refreshing the key's recency. Lower priority
// values pop first; among equal priorities the most recently pushed key wins.
// Any queued key can be removed, which is how pending loads are cancelled.
package queue
