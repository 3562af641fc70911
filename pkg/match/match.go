package match

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matches reports whether a file name matches an ordered include/exclude
// pattern list. A leading "!" marks an exclusion. A name matches when at
// least one include pattern matches and no exclude pattern matches; an empty
// list matches every name. Patterns apply to the basename only and are
// case-sensitive.
func Matches(filename string, patterns []string) bool {
	name := filepath.Base(filename)

	var includes, excludes []string
	for _, p := range patterns {
		if excluded, ok := strings.CutPrefix(p, "!"); ok {
			excludes = append(excludes, excluded)
		} else {
			includes = append(includes, p)
		}
	}

	for _, p := range excludes {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return false
		}
	}

	if len(includes) == 0 {
		return true
	}
	for _, p := range includes {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Filter returns the names that match the pattern list, preserving order
func Filter(names []string, patterns []string) []string {
	var out []string
	for _, n := range names {
		if Matches(n, patterns) {
			out = append(out, n)
		}
	}
	return out
}
