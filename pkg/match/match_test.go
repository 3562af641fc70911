package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		patterns []string
		expected bool
	}{
		{"empty pattern list matches everything", "anything.bin", nil, true},
		{"simple glob", "kubernetes-server-linux-amd64.tar.gz", []string{"*.tar.gz"}, true},
		{"no include matches", "checksums.txt", []string{"*.tar.gz"}, false},
		{"question mark", "v1.txt", []string{"v?.txt"}, true},
		{"character class", "release-3.bin", []string{"release-[0-9].bin"}, true},
		{"multiple includes, one matches", "tool.zip", []string{"*.tar.gz", "*.zip"}, true},
		{"exclusion wins over include", "tool-debug.tar.gz", []string{"*.tar.gz", "!*-debug*"}, false},
		{"exclusion without includes", "tool.sig", []string{"!*.sig"}, false},
		{"exclusion without includes passes others", "tool.bin", []string{"!*.sig"}, true},
		{"case sensitive", "Tool.ZIP", []string{"*.zip"}, false},
		{"basename only", "some/dir/tool.tar.gz", []string{"*.tar.gz"}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Matches(test.filename, test.patterns))
		})
	}
}

// Adding "!p" must force a non-match for any name that p itself matches,
// regardless of the rest of the list.
func TestExclusionOverrides(t *testing.T) {
	names := []string{"app-linux-amd64.tar.gz", "app-darwin-arm64.tar.gz", "app.zip"}
	base := []string{"*.tar.gz", "*.zip"}

	for _, name := range names {
		for _, p := range []string{"*.tar.gz", "app*", "*"} {
			if !Matches(name, []string{p}) {
				continue
			}
			patterns := append(append([]string{}, base...), "!"+p)
			assert.False(t, Matches(name, patterns), "pattern !%s should exclude %s", p, name)
		}
	}
}

func TestFilter(t *testing.T) {
	names := []string{"a.tar.gz", "b.txt", "c.tar.gz"}
	assert.Equal(t, []string{"a.tar.gz", "c.tar.gz"}, Filter(names, []string{"*.tar.gz"}))
	assert.Nil(t, Filter(names, []string{"*.rpm"}))
}
