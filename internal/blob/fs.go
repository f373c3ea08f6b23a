package blob

import (
	infraFS "boqcore/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed blob.Store rooted at root.
func NewFilesystem(root string) (Store, error) { return infraFS.New(root) }
