// Package migrations embeds the warehouse DDL so the etl binary carries its
// own schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
