// Package migrations embeds the floor fact schema applied by the migrate
// command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files lists the migrations in apply order.
var Files = []string{
	"001_create_floor_tables.sql",
}
