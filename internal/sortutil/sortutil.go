package sortutil

import "sort"

// StablePathSort returns a new slice containing the input paths sorted
// by byte order, which for UTF-8 names is code point order. The original
// slice is not modified.
func StablePathSort(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}

// Dedup returns sorted paths with duplicates removed.
func Dedup(paths []string) []string {
	sorted := StablePathSort(paths)
	out := make([]string, 0, len(sorted))
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
