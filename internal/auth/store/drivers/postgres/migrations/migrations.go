package migrations

import "embed"

// Migrations holds the postgres schema, applied in order by golang-migrate.
//
//go:embed *.sql
var Migrations embed.FS
