// Package migrations embeds the SQL schema for the consent ledger, audit sink,
// residency tables, rights requests and the regional record store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
