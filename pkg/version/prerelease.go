package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// prereleaseTokens are the markers that flag a tag as a prerelease even when
// the upstream prerelease flag is unset.
var prereleaseTokens = []string{"alpha", "beta", "rc", "pre", "dev", "snapshot", "nightly"}

// IsPrerelease reports whether a version string denotes a prerelease.
//
// A version is a prerelease when its parsed form (semver, or a 4-component
// numeric core) carries a non-empty pre-release part, or when the raw string
// contains one of the known markers (alpha, beta, rc, pre, dev, snapshot,
// nightly) as a token bounded by non-alphanumeric characters. Build metadata
// after "+" is ignored.
func IsPrerelease(version string) bool {
	v := Normalize(version)

	// Metadata never marks a prerelease
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}

	if sv, err := semver.NewVersion(v); err == nil && sv.Prerelease() != "" {
		return true
	}
	if q, ok := parseNumericCore(v); ok && len(q.pre) > 0 {
		return true
	}

	lower := strings.ToLower(v)
	for _, token := range prereleaseTokens {
		if containsToken(lower, token) {
			return true
		}
	}
	return false
}

// containsToken reports whether token occurs in s bounded by non-alphanumeric
// characters (or the string edges), so "rc" matches "1.2.0-rc.1" but not
// "1.2.0-search".
func containsToken(s, token string) bool {
	for start := 0; ; {
		i := strings.Index(s[start:], token)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(token)

		leftOK := i == 0 || !isAlphanumeric(s[i-1])
		rightOK := end == len(s) || !isAlphanumeric(s[end])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}

func isAlphanumeric(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
