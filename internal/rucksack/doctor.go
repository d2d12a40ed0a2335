package rucksack

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// DoctorReport lists disagreements between the index and the
// auxiliary files on disk. Orphans exist on disk without a reference;
// dangling numbers are referenced without a file. The store never
// creates dangling references itself, but external edits to the index
// can.
type DoctorReport struct {
	Orphans  []int
	Dangling []int
}

// Clean reports whether the index and the directory agree.
func (r DoctorReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0
}

// Doctor compares the auxiliary files present in the store directory
// against the numbers the index references.
func (s *Store) Doctor() (DoctorReport, error) {
	present := roaring.New()
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return DoctorReport{}, fmt.Errorf("read store directory %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem, ok := strings.CutSuffix(e.Name(), ".kra")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(stem)
		if err != nil || n < 0 {
			continue
		}
		present.Add(uint32(n))
	}

	referenced := roaring.New()
	for _, item := range s.items {
		if ref, ok := item.Data.(NodeRef); ok {
			referenced.Add(uint32(ref.Filename))
		}
	}

	var rep DoctorReport
	for it := roaring.AndNot(present, referenced).Iterator(); it.HasNext(); {
		rep.Orphans = append(rep.Orphans, int(it.Next()))
	}
	for it := roaring.AndNot(referenced, present).Iterator(); it.HasNext(); {
		rep.Dangling = append(rep.Dangling, int(it.Next()))
	}
	return rep, nil
}

// GC removes the orphaned auxiliary files found by Doctor, returning
// the numbers removed so far when a removal fails.
func (s *Store) GC() ([]int, error) {
	rep, err := s.Doctor()
	if err != nil {
		return nil, err
	}
	var removed []int
	for _, n := range rep.Orphans {
		if err := s.fs.Remove(s.NodePath(n)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", s.NodePath(n), err)
		}
		removed = append(removed, n)
	}
	return removed, nil
}
