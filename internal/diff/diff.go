// Package diff computes which playlist entries are new since the last emission.
package diff

import "hlstaild/internal/playlist"

// Compute returns the entries that follow cursor, the URI of the last emitted
// entry. first reports an initial backfill: cursor is empty and there is at
// least one entry.
//
// When cursor is no longer listed, the sliding window has moved past it and
// the whole list is returned again. Suppressing those repeats would need an
// unbounded set of every URI ever seen.
func Compute(entries []playlist.Segment, cursor string) (fresh []playlist.Segment, first bool) {
	if cursor == "" {
		return entries, len(entries) > 0
	}

	idx := IndexOf(entries, cursor)
	switch {
	case idx < 0:
		return entries, false
	case idx == len(entries)-1:
		return nil, false
	default:
		return entries[idx+1:], false
	}
}

// IndexOf returns the position of the last entry whose URI equals uri, or -1.
func IndexOf(entries []playlist.Segment, uri string) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].URI == uri {
			return i
		}
	}
	return -1
}
