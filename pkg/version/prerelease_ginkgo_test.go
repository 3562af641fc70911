package version

import (
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = Describe("IsPrerelease", func() {
	DescribeTable("should detect prerelease versions",
		func(input string, expected bool) {
			gomega.Expect(IsPrerelease(input)).To(gomega.Equal(expected))
		},
		Entry("semver prerelease part", "1.2.3-rc.1", true),
		Entry("alpha marker", "v2.0.0-alpha.2", true),
		Entry("beta marker without semver shape", "v3.21.0-beta.0", true),
		Entry("dev marker", "1.0-dev", true),
		Entry("snapshot marker", "7.2.0-SNAPSHOT", true),
		Entry("nightly marker", "nightly-2024-01-05", true),
		Entry("four-component prerelease part", "1.2.3.4-rc.1", true),
		Entry("four-component unknown prerelease tag", "1.2.3.4-hotfix", true),
		Entry("digit-glued marker is not a token", "v1.2.3.rc1", false),
		Entry("marker embedded in a word", "release.search", false),
		Entry("predator is not pre", "predator-build", false),
		Entry("stable release", "v1.2.3", false),
		Entry("plain release", "2.0.0", false),
		Entry("four-component release", "1.2.3.4", false),
		Entry("build metadata is ignored", "1.2.3+beta.1", false),
		Entry("prerelease plus metadata", "1.2.3-rc.1+build", true),
	)
})
