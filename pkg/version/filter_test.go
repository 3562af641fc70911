package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/relmon/pkg/types"
)

func TestMatchesExpr(t *testing.T) {
	release := types.Release{
		Repo:        "flanksource/deps",
		Tag:         "v1.2.3",
		Prerelease:  false,
		PublishedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{"empty expression matches", "", true},
		{"tag equality", `tag == "v1.2.3"`, true},
		{"tag mismatch", `tag == "v2.0.0"`, false},
		{"normalized version", `version == "1.2.3"`, true},
		{"tag prefix", `tag.startsWith("v1.")`, true},
		{"prerelease flag", `!prerelease`, true},
		{"combined", `!prerelease && version.startsWith("1.")`, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ok, err := MatchesExpr(release, test.expr)
			require.NoError(t, err)
			assert.Equal(t, test.expected, ok)
		})
	}
}

func TestMatchesExprInvalid(t *testing.T) {
	release := types.Release{Repo: "a/b", Tag: "v1.0.0"}
	_, err := MatchesExpr(release, `tag ==`)
	assert.Error(t, err)
}
