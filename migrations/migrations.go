// Package migrations embeds the SQL schema for each supported database driver.
//
// Files follow golang-migrate naming ({version}_{name}.up.sql / .down.sql) and
// are compiled into the binary so the server needs no migrations directory
// at runtime.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Dir returns the embedded directory holding migrations for a driver name
// as accepted by database.New ("postgres" or "sqlite3").
func Dir(driver string) string {
	if driver == "sqlite3" {
		return "sqlite"
	}
	return "postgres"
}
