// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

//go:embed seed.json migrations/*.sql
var FS embed.FS

const (
	SeedFile      = "seed.json"
	MigrationsDir = "migrations"
)
