package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"v1.2.3", "1.2.3"},
		{"V1.2.3", "1.2.3"},
		{"1.2.3", "1.2.3"},
		{" v1.2.3 ", "1.2.3"},
		{"v1.2.3-rc.1", "1.2.3-rc.1"},
		{"version", "version"},
		{"", ""},
	}

	for _, test := range tests {
		result := Normalize(test.input)
		if result != test.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"1.2.4", "1.2.3", 1},
		{"1.2.3", "1.3.0", -1},
		{"2.0.0", "1.99.99", 1},
		// missing components are zero
		{"v1", "v1.0.0", 0},
		{"1.2", "1.2.0", 0},
		// a plain release is greater than its prerelease
		{"1.2.3", "1.2.3-rc.1", 1},
		{"1.2.3-alpha", "1.2.3", -1},
		// numeric prerelease identifiers order numerically
		{"1.0.0-rc.10", "1.0.0-rc.2", 1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		// build metadata is ignored
		{"1.2.3+build.1", "1.2.3+build.9", 0},
		// four-component cores compare field-by-field
		{"1.2.3.4", "1.2.3.5", -1},
		{"1.2.3.4", "1.2.3", 1},
		{"1.2.3.4+build", "1.2.3.4", 0},
		// a four-component release is greater than its own prerelease
		{"1.2.3.4", "1.2.3.4-rc.1", 1},
		{"1.2.3.4-rc.2", "1.2.3.4-rc.10", -1},
		{"1.2.3.4-alpha", "1.2.3.4-beta", -1},
		{"1.2.3.4-rc.1", "1.2.3.5", -1},
		{"1.2.3.4-rc.1", "1.2.3.4-rc.1.1", -1},
		// tokenized fallback pads the shorter sequence with zeros
		{"2021_09", "2021_10", -1},
		{"2021-09", "2021-9", 0},
		// plain string last resort
		{"apple", "banana", -1},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, Compare(test.a, test.b), "Compare(%q, %q)", test.a, test.b)
		assert.Equal(t, -test.expected, Compare(test.b, test.a), "Compare(%q, %q)", test.b, test.a)
	}
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("v1.2.4", "v1.2.3"))
	assert.False(t, IsNewer("v1.2.3", "v1.2.3"))
	assert.False(t, IsNewer("v1.2.2", "v1.2.3"))

	// exactly one of newer/older/equal holds
	pairs := [][2]string{
		{"1.0.0", "2.0.0"},
		{"1.0.0-rc.1", "1.0.0"},
		{"3.1.4", "3.1.4"},
		{"v2", "2.0.0"},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		holds := 0
		if IsNewer(a, b) {
			holds++
		}
		if IsNewer(b, a) {
			holds++
		}
		if Equal(a, b) {
			holds++
		}
		assert.Equal(t, 1, holds, "trichotomy for (%q, %q)", a, b)
	}
}

func TestIsNewerTransitive(t *testing.T) {
	chains := [][3]string{
		{"1.0.0", "1.1.0", "2.0.0"},
		{"1.0.0-alpha", "1.0.0-rc.2", "1.0.0-rc.10"},
		{"v1", "v1.0.1", "v1.1"},
		{"1.2.3.4-rc.1", "1.2.3.4", "1.2.3.5"},
	}
	for _, chain := range chains {
		a, b, c := chain[0], chain[1], chain[2]
		assert.True(t, IsNewer(b, a), "IsNewer(%q, %q)", b, a)
		assert.True(t, IsNewer(c, b), "IsNewer(%q, %q)", c, b)
		assert.True(t, IsNewer(c, a), "IsNewer(%q, %q)", c, a)
	}
}
