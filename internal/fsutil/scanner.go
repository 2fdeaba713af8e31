package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// <version>_<name>.sql is an up script; .up.sql / .down.sql name a reversible pair.
var fileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_\-]+?)(?:\.(up|down))?\.sql$`)

type Entry struct {
	Version int64
	Name    string
	Kind    string // up | down
	Path    string // path in fs
}

// ScanDir scans a local directory on disk.
func ScanDir(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	return scan(entries, func(name string) string { return filepath.Join(dir, name) })
}

// ScanFS scans fsys under root (a slash-separated logical path).
func ScanFS(fsys fs.FS, root string) ([]Entry, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}
	return scan(entries, func(name string) string { return path.Join(root, name) })
}

func scan(entries []fs.DirEntry, full func(name string) string) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", e.Name(), err)
		}
		kind := m[3]
		if kind == "" {
			kind = "up"
		}
		out = append(out, Entry{Version: version, Name: m[2], Kind: kind, Path: full(e.Name())})
	}
	Sort(out)
	return out, nil
}

// Sort orders entries by version, up before down.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Version != entries[j].Version {
			return entries[i].Version < entries[j].Version
		}
		return entries[i].Kind == "up" && entries[j].Kind != "up"
	})
}
