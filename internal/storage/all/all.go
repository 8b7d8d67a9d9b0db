// Package all registers every storage backend with the storage registry.
//
// Import it for side effects from binaries that pick the backend from
// configuration.
package all

import (
	_ "sparkify/internal/storage/mssql"
	_ "sparkify/internal/storage/postgres"
	_ "sparkify/internal/storage/sqlite"
)
