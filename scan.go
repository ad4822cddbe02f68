package rulesmith

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanDir lists the candidate files in a directory. Non-regular entries
// (subdirectories, symlinks, devices) are skipped silently. When exts is
// non-empty only files with a matching extension are returned. The result
// is sorted so downstream ordering is deterministic.
func ScanDir(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if len(exts) > 0 && !matchExt(e.Name(), exts) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func matchExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range exts {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
