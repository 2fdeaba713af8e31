package migrator

import (
	"fmt"
	"strings"

	"github.com/pocketledger/pocketledger/internal/checksum"
)

type Plan struct {
	Pending []Migration // to apply in order
	Applied []Row
	All     []Migration
}

// IsApplied reports whether version already has a ledger row.
func (p *Plan) IsApplied(version int64) bool {
	for _, r := range p.Applied {
		if r.Version == version {
			return true
		}
	}
	return false
}

// plan reconciles the ledger with set. The ledger must hold a prefix of the
// set with unchanged scripts; anything else is a ConfigError.
func plan(set *Set, applied []Row) (*Plan, error) {
	done := make(map[int64]bool, len(applied))
	for _, row := range applied {
		m, ok := set.Lookup(row.Version)
		if !ok {
			return nil, versionError(ErrUnknownVersion, row.Version, row.Description)
		}
		if sum := checksum.Script(m.SQL); !strings.EqualFold(row.Checksum, sum) {
			return nil, versionError(ErrDrift, row.Version, fmt.Sprintf("ledger=%s script=%s", short(row.Checksum), short(sum)))
		}
		done[row.Version] = true
	}

	all := set.All()
	pending := make([]Migration, 0, len(all))
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
			continue
		}
		if len(pending) > 0 {
			return nil, versionError(ErrLedgerGap, m.Version,
				fmt.Sprintf("applied while version %d is not", pending[0].Version))
		}
	}
	return &Plan{Pending: pending, Applied: applied, All: all}, nil
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
