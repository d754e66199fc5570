package schema

import (
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = DescribeTable("stripRequired",
	func(in, want string) {
		gomega.Expect(stripRequired(in)).To(gomega.Equal(want))
	},
	Entry("required only", "required", ""),
	Entry("required with rules", "required,email", "omitempty,email"),
	Entry("already optional", "omitempty,min=1", "omitempty,min=1"),
	Entry("no required", "max=5", "omitempty,max=5"),
	Entry("spaces", "required, min=1", "omitempty,min=1"),
)
