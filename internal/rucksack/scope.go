package rucksack

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Scope identifies one of the two store instances. The global scope
// is shared across all documents; the local scope belongs to a
// directory tree near the working document.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// LocalDirName is the default directory name that marks a local scope.
const LocalDirName = "krita-rucksack"

// FindLocalDir resolves the local store directory for a document
// directory: the nearest ancestor of start (including start itself)
// containing a dirname entry wins; otherwise a fresh dirname under
// start. An empty dirname means LocalDirName.
func FindLocalDir(fsys billy.Filesystem, start, dirname string) string {
	if dirname == "" {
		dirname = LocalDirName
	}
	for dir := start; ; {
		cand := fsys.Join(dir, dirname)
		if _, err := fsys.Stat(cand); err == nil {
			return cand
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return fsys.Join(start, dirname)
}

// osRoot is the OS filesystem with hard links available, so
// cross-scope moves can share auxiliary file bytes instead of
// copying them.
type osRoot struct {
	billy.Filesystem
}

func (osRoot) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

// OSRoot returns the operating-system filesystem rooted at /. Store
// directories are addressed by absolute path on it.
func OSRoot() billy.Filesystem {
	return osRoot{osfs.New("/")}
}

var _ Linker = osRoot{}
