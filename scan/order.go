package scan

import (
	"slices"
	"strings"
)

// Compare orders two file paths the way the game loads plugins: folder by
// folder, case-insensitively. Inside one folder non-.dat files load before
// .dat files, and files in a folder load before the files of its
// subfolders. The later file wins when both define the same resource.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	pa, pb := split(a), split(b)
	n := min(len(pa), len(pb)) - 1
	i := 0
	for ; i < n; i++ {
		if c := strings.Compare(pa[i], pb[i]); c != 0 {
			return c
		}
	}

	if len(pa) != len(pb) {
		if len(pa) < len(pb) {
			return -1
		}
		return 1
	}

	da, db := strings.HasSuffix(pa[i], ".DAT"), strings.HasSuffix(pb[i], ".DAT")
	switch {
	case da && !db:
		return 1
	case !da && db:
		return -1
	}
	if c := strings.Compare(pa[i], pb[i]); c != 0 {
		return c
	}
	// Equal up to case.
	return strings.Compare(a, b)
}

func split(p string) []string {
	return strings.FieldsFunc(strings.ToUpper(p), func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

// Sort sorts paths in load order.
func Sort(paths []string) {
	slices.SortFunc(paths, Compare)
}
