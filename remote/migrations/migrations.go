// Package migrations embeds the goose migrations for the document store
// schema, including the change-notification trigger the subscription
// manager listens on.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
