package itemfs

import (
	"bytes"

	billy "github.com/go-git/go-billy/v5"
)

// bytesFile serves an inline item payload from memory.
type bytesFile struct {
	name string
	r    *bytes.Reader
}

func newBytesFile(name string, data []byte) *bytesFile {
	return &bytesFile{name: name, r: bytes.NewReader(data)}
}

func (f *bytesFile) Name() string { return f.name }

func (f *bytesFile) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *bytesFile) ReadAt(p []byte, off int64) (int, error) {
	return f.r.ReadAt(p, off)
}

func (f *bytesFile) Seek(offset int64, whence int) (int64, error) {
	return f.r.Seek(offset, whence)
}

func (f *bytesFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *bytesFile) Truncate(int64) error      { return errReadOnly }
func (f *bytesFile) Close() error              { return nil }
func (f *bytesFile) Lock() error               { return nil }
func (f *bytesFile) Unlock() error             { return nil }

// nodeFile reads through to an auxiliary document while reporting the
// projected name instead of the backing path.
type nodeFile struct {
	billy.File
	name string
}

func (f nodeFile) Name() string { return f.name }

func (f nodeFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f nodeFile) Truncate(int64) error      { return errReadOnly }

var (
	_ billy.File = (*bytesFile)(nil)
	_ billy.File = nodeFile{}
)
