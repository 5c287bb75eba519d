package snapshot

import "strings"

// IsDuplicate reports whether the most recent entry already holds a file with
// this name (case-insensitive) and exact byte size.
//
// Content is not hashed. Two different files sharing name and size count as
// duplicates. An empty folder is never a duplicate.
func IsDuplicate(entries []Entry, filename string, size int64) bool {
	if len(entries) == 0 {
		return false
	}

	latest := entries[0]
	for _, e := range entries[1:] {
		if newerFirst(e, latest) {
			latest = e
		}
	}

	return strings.EqualFold(DecodeOriginalName(latest.Name), filename) &&
		latest.SizeBytes == size
}
