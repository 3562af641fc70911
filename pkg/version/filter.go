package version

import (
	"fmt"

	"github.com/flanksource/gomplate/v3"
	"github.com/flanksource/relmon/pkg/types"
)

// MatchesExpr evaluates a CEL expression against a discovered release.
// The expression sees the following context:
//   - tag: original tag name (string)
//   - version: normalized version string (string)
//   - published: publication timestamp (time.Time)
//   - prerelease: upstream prerelease flag (bool)
//
// Releases are included when the expression evaluates to "true". An empty
// expression matches every release.
func MatchesExpr(release types.Release, expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	data := map[string]interface{}{
		"tag":        release.Tag,
		"version":    Normalize(release.Tag),
		"published":  release.PublishedAt,
		"prerelease": release.Prerelease,
	}

	evaluated, err := gomplate.RunTemplate(data, gomplate.Template{Expression: expr})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate version_expr for tag %s: %w", release.Tag, err)
	}

	return evaluated == "true", nil
}
