// Package migrations holds the embedded goose SQL migrations for the
// pipeline schema (ingestion queue, processed items, data-quality log).
// File names carry a YYYYMMDDHHMMSS prefix and apply in that order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
