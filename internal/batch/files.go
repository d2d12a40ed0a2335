package batch

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// imageExtensions are the file types the manager lists and operates
// on. Matching is exact on the extension, the same set Krita itself
// opens.
var imageExtensions = []string{
	".avif", ".bmp", ".heif", ".jpeg", ".jpg", ".jxl",
	".kra", ".ora", ".png", ".psd", ".tiff", ".webp",
}

// IsImage reports whether name carries a recognized image extension.
func IsImage(name string) bool {
	return slices.Contains(imageExtensions, filepath.Ext(name))
}

// ListImages returns the image file names in dir, sorted
// case-insensitively.
func ListImages(fsys billy.Filesystem, dir string) ([]string, error) {
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() || !IsImage(info.Name()) {
			continue
		}
		names = append(names, info.Name())
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a), strings.ToLower(b)),
			strings.Compare(a, b),
		)
	})
	return names, nil
}

// Stem strips the directory and extension from path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ErrTargetExists reports a rename collision.
var ErrTargetExists = errors.New("target already exists")

// RenameImage renames a document within dir. The new name keeps the
// .kra extension regardless of what the caller typed. Returns the
// new path.
func RenameImage(fsys billy.Filesystem, dir, oldName, newName string) (string, error) {
	src := fsys.Join(dir, oldName)
	dst := fsys.Join(dir, strings.TrimSuffix(newName, ".kra")+".kra")
	if _, err := fsys.Stat(dst); err == nil {
		return "", fmt.Errorf("could not rename %s: %w", src, ErrTargetExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", dst, err)
	}
	if err := fsys.Rename(src, dst); err != nil {
		return "", fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}
	return dst, nil
}

// DeleteImages removes the given paths, continuing past individual
// failures. The combined error names every file that could not be
// deleted.
func DeleteImages(fsys billy.Filesystem, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := fsys.Remove(p); err != nil {
			errs = append(errs, fmt.Errorf("could not delete %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
