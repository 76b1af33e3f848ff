// Package migrations holds the schema of the PostgreSQL alert store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
