package migrations

import "embed"

// FS contains the embedded SQLite migrations for the run recorder.
//
//go:embed *.sql
var FS embed.FS
