package db

import "embed"

// migrations holds the goose migration files for the snapshot store.
//
//go:embed migrations/*.sql
var migrations embed.FS
