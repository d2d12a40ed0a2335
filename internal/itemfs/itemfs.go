// Package itemfs projects rucksack stores as a read-only filesystem
// for serving over NFS: one top-level directory per scope, one file
// per item. Node items read through to their auxiliary documents;
// inline items render their payload. The projection is live: every
// call consults the stores, so a Refresh shows up on the next
// directory read.
package itemfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/rucksack/internal/rucksack"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// FS adapts a set of stores to billy.Filesystem.
type FS struct {
	stores    []*rucksack.Store
	mountTime time.Time
}

// New builds the projection. Each store becomes one top-level
// directory named after its scope.
func New(stores ...*rucksack.Store) *FS {
	return &FS{stores: stores, mountTime: time.Now()}
}

// entry is one projected file inside a scope directory.
type entry struct {
	name  string
	store *rucksack.Store
	item  rucksack.Item
}

// Ext returns the projected file extension for an item payload.
func Ext(data rucksack.ItemData) string {
	switch data.(type) {
	case rucksack.NodeRef:
		return ".kra"
	case rucksack.Vector:
		return ".svg"
	case rucksack.LayerStyle:
		return ".asl"
	}
	panic("unknown item data variant")
}

// entries projects a store's items to file entries. Item names are
// not unique, so colliding file names get " (i)" suffixes in index
// order.
func entries(s *rucksack.Store) []entry {
	items := s.Items()
	out := make([]entry, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, item := range items {
		base := item.Name + Ext(item.Data)
		n := seen[base]
		seen[base] = n + 1
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s (%d)%s", item.Name, n, Ext(item.Data))
		}
		out = append(out, entry{name: name, store: s, item: item})
	}
	return out
}

func (fs *FS) findStore(scope string) *rucksack.Store {
	for _, s := range fs.stores {
		if string(s.Scope()) == scope {
			return s
		}
	}
	return nil
}

// lookup resolves a cleaned path to either a directory or a file
// entry.
func (fs *FS) lookup(filename, op string) (ent *entry, isDir bool, err error) {
	parts := splitPath(filename)
	switch len(parts) {
	case 0:
		return nil, true, nil
	case 1:
		if fs.findStore(parts[0]) == nil {
			return nil, false, &os.PathError{Op: op, Path: filename, Err: os.ErrNotExist}
		}
		return nil, true, nil
	case 2:
		store := fs.findStore(parts[0])
		if store == nil {
			return nil, false, &os.PathError{Op: op, Path: filename, Err: os.ErrNotExist}
		}
		for _, e := range entries(store) {
			if e.name == parts[1] {
				return &e, false, nil
			}
		}
	}
	return nil, false, &os.PathError{Op: op, Path: filename, Err: os.ErrNotExist}
}

// --- billy.Basic ---

func (fs *FS) Create(string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *FS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *FS) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)
	ent, isDir, err := fs.lookup(filename, "open")
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}

	switch data := ent.item.Data.(type) {
	case rucksack.NodeRef:
		f, err := ent.store.FS().Open(ent.store.NodePath(data.Filename))
		if err != nil {
			// Dangling reference: it lists but cannot be opened.
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
		}
		return nodeFile{File: f, name: filename}, nil
	case rucksack.Vector:
		return newBytesFile(filename, []byte(data.SVG)), nil
	case rucksack.LayerStyle:
		return newBytesFile(filename, []byte(data.ASL)), nil
	}
	panic("unknown item data variant")
}

func (fs *FS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *FS) Rename(string, string) error {
	return errReadOnly
}

func (fs *FS) Remove(string) error {
	return errReadOnly
}

func (fs *FS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *FS) TempFile(string, string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *FS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)
	parts := splitPath(path)
	switch len(parts) {
	case 0:
		infos := make([]os.FileInfo, 0, len(fs.stores))
		for _, s := range fs.stores {
			infos = append(infos, &staticFileInfo{
				name:    string(s.Scope()),
				mode:    os.ModeDir | 0o555,
				modTime: fs.mountTime,
			})
		}
		return infos, nil
	case 1:
		store := fs.findStore(parts[0])
		if store == nil {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
		}
		ents := entries(store)
		infos := make([]os.FileInfo, 0, len(ents))
		for _, e := range ents {
			infos = append(infos, fs.entryInfo(e))
		}
		return infos, nil
	}
	return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
}

func (fs *FS) MkdirAll(string, os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *FS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)
	ent, isDir, err := fs.lookup(filename, "lstat")
	if err != nil {
		return nil, err
	}
	if isDir {
		return &staticFileInfo{
			name:    filepath.Base(filename),
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	}
	return fs.entryInfo(*ent), nil
}

func (fs *FS) Symlink(string, string) error {
	return billy.ErrNotSupported
}

func (fs *FS) Readlink(string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *FS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *FS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *FS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

// entryInfo sizes an entry. A node item whose auxiliary file is
// missing still stats with size 0; opening it reports the problem.
func (fs *FS) entryInfo(e entry) os.FileInfo {
	info := &staticFileInfo{name: e.name, mode: 0o444, modTime: fs.mountTime}
	switch data := e.item.Data.(type) {
	case rucksack.NodeRef:
		if fi, err := e.store.FS().Stat(e.store.NodePath(data.Filename)); err == nil {
			info.size = fi.Size()
			info.modTime = fi.ModTime()
		}
	case rucksack.Vector:
		info.size = int64(len(data.SVG))
	case rucksack.LayerStyle:
		info.size = int64(len(data.ASL))
	}
	return info
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*FS)(nil)
	_ billy.Capable    = (*FS)(nil)
)
