package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// DiscoverOptions selects files when an argument names a directory.
type DiscoverOptions struct {
	Recursive bool
	// Include and Exclude are filepath.Match patterns on the base name.
	// Without Include, directories contribute supported image files only.
	Include []string
	Exclude []string
}

// Discover expands args into image paths. Files are taken as given unless
// excluded; directories are walked. The result keeps argument order, with
// each directory's files sorted, and drops duplicates.
func Discover(args []string, opts DiscoverOptions) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !matchesAnyPattern(arg, opts.Exclude) {
				add(arg)
			}
			continue
		}

		found, err := discoverInDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}

func discoverInDirectory(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldIncludeFile(path, opts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

func shouldIncludeFile(path string, opts DiscoverOptions) bool {
	if matchesAnyPattern(path, opts.Exclude) {
		return false
	}
	if len(opts.Include) == 0 {
		return utils.IsSupportedImage(path)
	}
	return matchesAnyPattern(path, opts.Include)
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
