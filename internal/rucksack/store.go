package rucksack

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"syscall"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// IndexName is the index file each store directory carries.
const IndexName = "rucksack.json"

const maxAuxFiles = 1024

// Store is one rucksack scope: an ordered item list backed by an
// index file (rucksack.json) and numbered auxiliary documents in a
// single directory.
//
// Every mutation rewrites the whole index, and that rewrite is the
// commit point: on failure the in-memory list keeps the last durably
// written state. Side effects are ordered so the auxiliary-file set
// on disk is always a superset of what the index references.
//
// Methods are not safe for concurrent use. The store targets a single
// interactive session; external edits to the index are only picked up
// by Refresh.
type Store struct {
	fs    billy.Filesystem
	dir   string
	scope Scope
	items []Item
}

// Open reads the index under dir. A missing index file is an empty
// store; any other read or decode failure is surfaced, never treated
// as empty.
func Open(fsys billy.Filesystem, dir string, scope Scope) (*Store, error) {
	s := &Store{fs: fsys, dir: dir, scope: scope}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Scope reports which of the two store instances this is.
func (s *Store) Scope() Scope { return s.scope }

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// IndexPath returns the path of the index file.
func (s *Store) IndexPath() string { return s.fs.Join(s.dir, IndexName) }

// Len reports the number of items.
func (s *Store) Len() int { return len(s.items) }

// Items returns a snapshot of the item list in index order.
func (s *Store) Items() []Item { return slices.Clone(s.items) }

// Item returns the item at index i. An out-of-range index is a
// programming error.
func (s *Store) Item(i int) Item { return s.items[i] }

// NodePath returns the auxiliary document path for filename n.
func (s *Store) NodePath(n int) string {
	return s.fs.Join(s.dir, fmt.Sprintf("%d.kra", n))
}

// FS returns the filesystem the store lives on.
func (s *Store) FS() billy.Filesystem { return s.fs }

// ReadNode returns the contents of the auxiliary document numbered n.
func (s *Store) ReadNode(n int) ([]byte, error) {
	p := s.NodePath(n)
	data, err := util.ReadFile(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Refresh re-reads the index from disk, discarding in-memory state.
func (s *Store) Refresh() error {
	items, err := readIndex(s.fs, s.IndexPath())
	if err != nil {
		return err
	}
	s.items = items
	return nil
}

// AllocateNodePath returns the smallest n in 0..1023 whose auxiliary
// file does not exist yet, creating the store directory so the caller
// can write to the returned path right away. The caller writes the
// auxiliary file before adding the item that references it.
func (s *Store) AllocateNodePath() (int, string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return 0, "", fmt.Errorf("create store directory %s: %w", s.dir, err)
	}
	for n := 0; n < maxAuxFiles; n++ {
		p := s.NodePath(n)
		_, err := s.fs.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return n, p, nil
		}
		if err != nil {
			return 0, "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return 0, "", errors.New("could not find suitable layer path")
}

// Add appends Item{name, data} and commits. Any auxiliary file behind
// data must already be on disk (aux-write before index-write).
func (s *Store) Add(name string, data ItemData) error {
	next := append(slices.Clone(s.items), Item{Name: name, Data: data})
	if err := s.writeIndex(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Delete removes the item at index i and commits. A NodeRef item's
// auxiliary file is removed only after the index write succeeds;
// failure to remove it is logged and tolerated, since the index is
// already the source of truth and an orphaned file is a harmless
// leak.
func (s *Store) Delete(i int) error {
	removed := s.items[i]
	next := slices.Delete(slices.Clone(s.items), i, i+1)
	if err := s.writeIndex(next); err != nil {
		return err
	}
	s.items = next
	if ref, ok := removed.Data.(NodeRef); ok {
		p := s.NodePath(ref.Filename)
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("could not remove auxiliary file", "path", p, "err", err)
		}
	}
	return nil
}

// Rename changes the name of item i in place and commits.
func (s *Store) Rename(i int, name string) error {
	next := slices.Clone(s.items)
	next[i].Name = name
	if err := s.writeIndex(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// MoveTo moves item i into dst under name. A NodeRef's auxiliary file
// is hard-linked (or copied, when linking is rejected) into dst under
// a freshly allocated filename, the destination index is written, and
// only then is the item deleted from the source. Copy before delete:
// a crash in between can leak a duplicate but never lose the item.
func (s *Store) MoveTo(dst *Store, i int, name string) error {
	data := s.items[i].Data
	if ref, ok := data.(NodeRef); ok {
		n, dstPath, err := dst.AllocateNodePath()
		if err != nil {
			return err
		}
		if err := copyOrLink(s.fs, dst.fs, s.NodePath(ref.Filename), dstPath); err != nil {
			return err
		}
		data = NodeRef{Filename: n, Kind: ref.Kind}
	}
	if err := dst.Add(name, data); err != nil {
		return err
	}
	return s.Delete(i)
}

// Replace swaps the payload of item i, keeping its name: an Add of
// the new data followed by a Delete of the old entry. If the add
// fails the old item is left untouched and the delete never runs.
func (s *Store) Replace(i int, data ItemData) error {
	name := s.items[i].Name
	if err := s.Add(name, data); err != nil {
		return err
	}
	return s.Delete(i)
}

func readIndex(fsys billy.Filesystem, path string) ([]Item, error) {
	data, err := util.ReadFile(fsys, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON at %s: %w", path, err)
	}
	items, err := DecodeIndex(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON at %s: %w", path, err)
	}
	return items, nil
}

// writeIndex rewrites the index atomically: encode, write a temp file
// in the store directory, rename over the index.
func (s *Store) writeIndex(items []Item) error {
	data, err := EncodeIndex(items)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory %s: %w", s.dir, err)
	}
	f, err := s.fs.TempFile(s.dir, IndexName)
	if err != nil {
		return fmt.Errorf("create temp index in %s: %w", s.dir, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write index %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write index %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.IndexPath()); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, s.IndexPath(), err)
	}
	return nil
}

// Linker is the optional hard-link capability of a store filesystem.
// The OS-backed root implements it; in-memory filesystems do not and
// fall back to copying.
type Linker interface {
	Link(oldname, newname string) error
}

// copyOrLink transfers src to dst, preferring a hard link when both
// stores share a filesystem that can link. A link rejected because
// the paths live on different devices (or because the backend cannot
// link at all) degrades to a byte copy; other link failures surface.
func copyOrLink(srcFS, dstFS billy.Filesystem, src, dst string) error {
	if srcFS == dstFS {
		if ln, ok := srcFS.(Linker); ok {
			err := ln.Link(src, dst)
			if err == nil {
				return nil
			}
			if !errors.Is(err, syscall.EXDEV) && !errors.Is(err, errors.ErrUnsupported) {
				return fmt.Errorf("link %s to %s: %w", src, dst, err)
			}
		}
	}
	return copyFile(srcFS, dstFS, src, dst)
}

func copyFile(srcFS, dstFS billy.Filesystem, src, dst string) error {
	in, err := srcFS.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	out, err := dstFS.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}
