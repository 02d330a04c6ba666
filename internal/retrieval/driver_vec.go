//go:build sqlite_vec && cgo

package retrieval

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// cgo build: mattn driver with the sqlite-vec extension registered as an
// auto-loadable extension, so vec0 virtual tables are available to tooling
// that inspects the chunk database.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
