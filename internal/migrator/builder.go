package migrator

import "fmt"

// Builder collects the migration list in declaration order. Up migrations
// must be declared with strictly ascending versions.
type Builder struct {
	entries []Migration
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Add(m Migration) *Builder {
	b.entries = append(b.entries, m)
	return b
}

func (b *Builder) Up(version int64, description, sql string) *Builder {
	return b.Add(Migration{Version: version, Description: description, SQL: sql, Kind: Up})
}

func (b *Builder) Down(version int64, description, sql string) *Builder {
	return b.Add(Migration{Version: version, Description: description, SQL: sql, Kind: Down})
}

// Build validates the list and freezes it into a Set.
func (b *Builder) Build() (*Set, error) {
	ups := make([]Migration, 0, len(b.entries))
	downs := map[int64]Migration{}
	upSeen := map[int64]bool{}
	for _, m := range b.entries {
		if m.Version < 0 {
			return nil, versionError(ErrInvalidVersion, m.Version, "must not be negative")
		}
		switch m.Kind {
		case Up:
			if upSeen[m.Version] {
				return nil, versionError(ErrDuplicateVersion, m.Version, m.Description)
			}
			upSeen[m.Version] = true
			ups = append(ups, m)
		case Down:
			if _, ok := downs[m.Version]; ok {
				return nil, versionError(ErrDuplicateVersion, m.Version, m.Description+" (down)")
			}
			downs[m.Version] = m
		default:
			return nil, versionError(ErrInvalidKind, m.Version, fmt.Sprintf("kind %d", int(m.Kind)))
		}
	}
	for i := 1; i < len(ups); i++ {
		if ups[i].Version < ups[i-1].Version {
			return nil, versionError(ErrOutOfOrder, ups[i].Version,
				fmt.Sprintf("declared after version %d", ups[i-1].Version))
		}
	}
	for v, m := range downs {
		if !upSeen[v] {
			return nil, versionError(ErrOrphanDown, v, m.Description)
		}
	}
	return &Set{ups: ups, downs: downs}, nil
}

// Set is a validated, immutable migration list.
type Set struct {
	ups   []Migration
	downs map[int64]Migration
}

// All returns the up migrations in ascending version order.
func (s *Set) All() []Migration {
	out := make([]Migration, len(s.ups))
	copy(out, s.ups)
	return out
}

func (s *Set) Len() int { return len(s.ups) }

// Latest returns the highest version, or false for an empty set.
func (s *Set) Latest() (int64, bool) {
	if len(s.ups) == 0 {
		return 0, false
	}
	return s.ups[len(s.ups)-1].Version, true
}

func (s *Set) Lookup(version int64) (Migration, bool) {
	for _, m := range s.ups {
		if m.Version == version {
			return m, true
		}
	}
	return Migration{}, false
}

// DownFor returns the reverting script registered for version, if any.
func (s *Set) DownFor(version int64) (Migration, bool) {
	m, ok := s.downs[version]
	return m, ok
}
