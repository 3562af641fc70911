package version

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Normalize strips the optional v/V prefix and surrounding whitespace so
// "v1.2.3" and "1.2.3" compare and pin-match as the same version.
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	if len(version) > 1 && (version[0] == 'v' || version[0] == 'V') && version[1] >= '0' && version[1] <= '9' {
		version = version[1:]
	}
	return version
}

// Compare imposes a total order over version strings.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
//
// Both operands are parsed as semver first (missing minor/patch treated as
// zero, build metadata ignored). Versions with a 4-component numeric core,
// which the semver parser rejects, are compared field-by-field with the same
// pre-release rules: a plain release orders above its own pre-release. Only
// when an operand fails both shapes are the two compared token-wise on ./-/_
// separators, numeric tokens by integer value, the shorter sequence padded
// with zeros. As a last resort plain string comparison applies, so Compare
// never fails.
func Compare(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 0
	}

	sa, errA := semver.NewVersion(na)
	sb, errB := semver.NewVersion(nb)
	if errA == nil && errB == nil {
		return sa.Compare(sb)
	}

	qa, okA := parseNumericCore(na)
	qb, okB := parseNumericCore(nb)
	if okA && okB {
		return compareNumericCore(qa, qb)
	}

	if c, ok := compareTokens(na, nb); ok {
		return c
	}

	return strings.Compare(na, nb)
}

// IsNewer reports whether candidate orders strictly after baseline
func IsNewer(candidate, baseline string) bool {
	return Compare(candidate, baseline) > 0
}

// Equal reports whether the two versions order the same
func Equal(a, b string) bool {
	return Compare(a, b) == 0
}

// numericCore is a version with a dotted numeric core of 1-4 components and
// an optional dash-prefixed pre-release tag. Build metadata after "+" is
// dropped before parsing.
type numericCore struct {
	core [4]int64
	pre  []string
}

func parseNumericCore(v string) (numericCore, bool) {
	var out numericCore

	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	core, pre, hasPre := strings.Cut(v, "-")
	if hasPre && pre == "" {
		return out, false
	}

	fields := strings.Split(core, ".")
	if len(fields) > 4 {
		return out, false
	}
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil || n < 0 {
			return out, false
		}
		out.core[i] = n
	}
	if hasPre {
		out.pre = strings.Split(pre, ".")
	}
	return out, true
}

// compareNumericCore compares the numeric core field-by-field, then applies
// the pre-release rules: no pre-release orders above any pre-release, and
// pre-release identifiers compare dot-wise with numeric before alphanumeric.
func compareNumericCore(a, b numericCore) int {
	for i := 0; i < 4; i++ {
		switch {
		case a.core[i] < b.core[i]:
			return -1
		case a.core[i] > b.core[i]:
			return 1
		}
	}

	switch {
	case len(a.pre) == 0 && len(b.pre) == 0:
		return 0
	case len(a.pre) == 0:
		return 1
	case len(b.pre) == 0:
		return -1
	}

	for i := 0; i < len(a.pre) && i < len(b.pre); i++ {
		if c := compareToken(a.pre[i], b.pre[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.pre) < len(b.pre):
		return -1
	case len(a.pre) > len(b.pre):
		return 1
	}
	return 0
}

func splitTokens(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
}

// compareTokens compares versions token-wise. The second return is false when
// neither operand yields any tokens.
func compareTokens(a, b string) (int, bool) {
	ta, tb := splitTokens(a), splitTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0, false
	}

	n := len(ta)
	if len(tb) > n {
		n = len(tb)
	}
	for i := 0; i < n; i++ {
		ea, eb := "0", "0"
		if i < len(ta) {
			ea = ta[i]
		}
		if i < len(tb) {
			eb = tb[i]
		}
		if c := compareToken(ea, eb); c != 0 {
			return c, true
		}
	}
	return 0, true
}

func compareToken(a, b string) int {
	ia, errA := strconv.Atoi(a)
	ib, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	case errA == nil:
		// numeric orders before alphanumeric, as in semver prereleases
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
