// Package migrations holds the embedded schema of the credential store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
