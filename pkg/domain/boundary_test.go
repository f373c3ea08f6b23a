package domain_test

import (
	"testing"

	"boqcore/testutil"
)

// The domain package is the dependency floor of the module: it may only use
// the identifier grammar and the standard library.
func TestDomainImportsNoInternalPackages(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/domain stays free of internal dependencies")
}
