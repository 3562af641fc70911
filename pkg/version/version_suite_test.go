package version

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestVersion(t *testing.T) {
	gomega.RegisterFailHandler(Fail)
	RunSpecs(t, "Version Suite")
}
