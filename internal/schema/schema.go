// Package schema holds the application's compiled-in migration list.
package schema

import (
	_ "embed"

	"github.com/pocketledger/pocketledger/internal/migrator"
)

var (
	//go:embed migrations/0000_narrow_matthew_murdock.sql
	narrowMatthewMurdock string

	//go:embed migrations/0001_wealthy_warbird.sql
	wealthyWarbird string
)

// Migrations returns the application schema history. Append new entries at
// the end with the next version; never edit an entry that has shipped.
func Migrations() (*migrator.Set, error) {
	return migrator.NewBuilder().
		Up(1, "narrow_matthew_murdock", narrowMatthewMurdock).
		Up(2, "wealthy_warbird", wealthyWarbird).
		Build()
}
