// Package discover turns the input path into the ordered list of image files
// to process.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imgmatrix/internal/imgerr"
	"imgmatrix/pkg/imgutil"
)

// ErrNoImages is wrapped in the discovery error returned when nothing under
// the input path has an image extension.
var ErrNoImages = errors.New("no valid images found")

type Options struct {
	Recursive bool
	// Exclude is a directory that is never descended into, typically the
	// output directory when it sits inside the input tree.
	Exclude string
}

// Files returns the image files named by root, sorted lexicographically. A
// file root must itself carry an image extension. A directory root is
// scanned one level deep unless opts.Recursive is set. Symlinked files are
// included; unreadable subdirectories and dangling links are skipped.
func Files(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, imgerr.Discovery(root, fmt.Errorf("path does not exist"))
		}
		return nil, imgerr.Discovery(root, err)
	}

	if info.Mode().IsRegular() {
		if !imgutil.IsInputExtension(filepath.Ext(root)) {
			return nil, imgerr.Discovery(root, fmt.Errorf("not a supported image format"))
		}
		return []string{root}, nil
	}
	if !info.IsDir() {
		return nil, imgerr.Discovery(root, fmt.Errorf("not a valid file or directory"))
	}

	exclude := ""
	if opts.Exclude != "" {
		if absRoot, err := filepath.Abs(root); err == nil {
			if absEx, err := filepath.Abs(opts.Exclude); err == nil && absEx != absRoot && isWithin(absEx, absRoot) {
				exclude = absEx
			}
		}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive {
				return fs.SkipDir
			}
			if exclude != "" {
				if abs, err := filepath.Abs(path); err == nil && isWithin(abs, exclude) {
					return fs.SkipDir
				}
			}
			return nil
		}
		if !isRegularFile(path, d) {
			return nil
		}
		if imgutil.IsInputExtension(filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, imgerr.Discovery(root, err)
	}

	if len(files) == 0 {
		return nil, imgerr.Discovery(root, ErrNoImages)
	}
	sort.Strings(files)
	return files, nil
}

// isRegularFile follows symlinks, so a link to an image file counts as that
// file. Links to directories are never descended into.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
