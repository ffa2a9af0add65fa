// Package store holds the job history backends behind download.JobStore.
package store

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 100

func normLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
