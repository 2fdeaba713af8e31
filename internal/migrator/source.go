package migrator

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/pocketledger/pocketledger/internal/fsutil"
)

// FileSource loads migrations from <version>_<name>.sql files, either from
// FS or, when FS is nil, from RootDir on disk.
type FileSource struct {
	FS      fs.FS
	RootDir string
}

// Load reads every script and validates the result like any other Builder
// list, so two files sharing a version are a ConfigError.
func (s FileSource) Load() (*Set, error) {
	var (
		entries []fsutil.Entry
		err     error
	)
	if s.FS != nil {
		root := s.RootDir
		if root == "" {
			root = "."
		}
		entries, err = fsutil.ScanFS(s.FS, root)
	} else {
		entries, err = fsutil.ScanDir(s.RootDir)
	}
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}

	b := NewBuilder()
	for _, e := range entries {
		var body []byte
		if s.FS != nil {
			body, err = fs.ReadFile(s.FS, e.Path)
		} else {
			body, err = os.ReadFile(e.Path)
		}
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Path, err)
		}
		kind := Up
		if e.Kind == "down" {
			kind = Down
		}
		b.Add(Migration{Version: e.Version, Description: e.Name, SQL: string(body), Kind: kind})
	}
	return b.Build()
}
