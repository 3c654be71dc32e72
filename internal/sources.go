package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// IsSpreadsheet returns true for the file extensions publications are released as
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xls", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ExpandSourcePaths turns CLI file arguments into spreadsheet paths.
// A directory expands to the spreadsheets directly inside it, sorted by name.
// An argument containing glob characters expands to its matches.
// Anything else is kept as given, so a missing file fails when it is read.
// Example: "assets/raw" → ["assets/raw/2023Q1.xlsx", "assets/raw/2023Q2.xlsx"]
// Example: "data/*Analysis*.xlsx" → the matching files
func ExpandSourcePaths(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", arg, err)
			}
			var files []string
			for _, e := range entries {
				if !e.IsDir() && IsSpreadsheet(e.Name()) && !strings.HasPrefix(e.Name(), "~$") {
					files = append(files, filepath.Join(arg, e.Name()))
				}
			}
			slices.Sort(files)
			for _, f := range files {
				add(f)
			}
			continue
		}
		if strings.ContainsAny(arg, "*?[") {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}
		add(arg)
	}
	return out, nil
}

// LoadSources reads spreadsheet files from disk
func LoadSources(paths []string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		sources = append(sources, Source{Name: filepath.Base(p), Data: data})
	}
	return sources, nil
}
