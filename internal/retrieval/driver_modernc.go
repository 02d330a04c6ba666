//go:build !(sqlite_vec && cgo)

package retrieval

import (
	_ "modernc.org/sqlite"
)

// Pure-Go SQLite driver; similarity runs in-process over JSON embeddings.
const driverName = "sqlite"
