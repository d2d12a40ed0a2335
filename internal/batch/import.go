package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/agentic-research/rucksack/internal/host"
)

// ExistsPolicy decides what happens when an import target already
// exists.
type ExistsPolicy int

const (
	ExistsSkip ExistsPolicy = iota
	ExistsOverwrite
	ExistsAddAsLayer
)

var existsPolicyNames = []string{"skip", "overwrite", "add-as-layer"}

func (p ExistsPolicy) String() string { return existsPolicyNames[p] }

// ParseExistsPolicy maps a policy name back to its value.
func ParseExistsPolicy(name string) (ExistsPolicy, error) {
	if i := slices.Index(existsPolicyNames, name); i >= 0 {
		return ExistsPolicy(i), nil
	}
	return 0, fmt.Errorf("unknown policy %q (expected one of %s)",
		name, strings.Join(existsPolicyNames, ", "))
}

// ImportOptions tune the import flow.
type ImportOptions struct {
	DPI        float64 // 0 leaves the document resolution alone
	OnExisting ExistsPolicy
	FileLayer  bool // link the source as a file layer instead of copying pixels
}

// ImportReport counts the outcome.
type ImportReport struct {
	Imported int
	Skipped  int
}

// Importer turns plain images into .kra documents.
type Importer struct {
	docs host.DocumentStore
	fs   billy.Filesystem
}

func NewImporter(docs host.DocumentStore, fsys billy.Filesystem) *Importer {
	return &Importer{docs: docs, fs: fsys}
}

// Import converts each source image into <dir>/<stem>.kra. The first
// document failure aborts the remaining sources; the report counts
// what happened up to that point.
func (im *Importer) Import(ctx context.Context, dir string, sources []string, opts ImportOptions) (ImportReport, error) {
	var report ImportReport
	for _, src := range sources {
		dst := im.fs.Join(dir, Stem(src)+".kra")

		addAsLayer := false
		if _, err := im.fs.Stat(dst); err == nil {
			switch opts.OnExisting {
			case ExistsSkip:
				slog.Warn("skipping import, target exists", "path", dst)
				report.Skipped++
				continue
			case ExistsOverwrite:
			case ExistsAddAsLayer:
				addAsLayer = true
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return report, fmt.Errorf("stat %s: %w", dst, err)
		}

		slog.Info("importing", "source", src, "destination", dst)
		var err error
		if addAsLayer {
			err = im.importInto(ctx, src, dst, opts)
		} else {
			err = im.importNew(ctx, src, dst, opts)
		}
		if err != nil {
			return report, err
		}
		report.Imported++
	}
	return report, nil
}

// importNew builds a fresh document at dst from src. With FileLayer
// set the document only references src, so src is never opened. A
// plain import with no resolution change is a straight conversion,
// which keeps exec-style document stores usable here.
func (im *Importer) importNew(ctx context.Context, src, dst string, opts ImportOptions) error {
	if !opts.FileLayer && opts.DPI == 0 {
		if err := im.docs.Convert(ctx, src, dst, host.ExportConfig{Ext: "kra"}); err != nil {
			return fmt.Errorf("failed to convert %s: %w", src, err)
		}
		return nil
	}

	var doc host.Document
	var err error
	if opts.FileLayer {
		doc, err = im.docs.CreateBlank(ctx, host.CanvasParams{DPI: opts.DPI})
		if err != nil {
			return fmt.Errorf("create blank document: %w", err)
		}
	} else {
		doc, err = im.docs.Open(ctx, src)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", src, err)
		}
	}
	defer func() { _ = doc.Close() }()

	if opts.FileLayer {
		if err := doc.AddFileLayer(ctx, src); err != nil {
			return fmt.Errorf("add file layer for %s: %w", src, err)
		}
	}
	if opts.DPI > 0 {
		if err := doc.SetResolution(opts.DPI); err != nil {
			return fmt.Errorf("set resolution on %s: %w", src, err)
		}
	}
	if err := doc.SaveAs(ctx, dst); err != nil {
		return fmt.Errorf("failed to save to %s: %w", dst, err)
	}
	return nil
}

// importInto folds src into the already-existing document at dst.
func (im *Importer) importInto(ctx context.Context, src, dst string, opts ImportOptions) error {
	dstDoc, err := im.docs.Open(ctx, dst)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dst, err)
	}
	defer func() { _ = dstDoc.Close() }()

	if opts.FileLayer {
		if err := dstDoc.AddFileLayer(ctx, src); err != nil {
			return fmt.Errorf("add file layer for %s: %w", src, err)
		}
	} else {
		srcDoc, err := im.docs.Open(ctx, src)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", src, err)
		}
		err = srcDoc.CloneNodeInto(ctx, dstDoc)
		_ = srcDoc.Close()
		if err != nil {
			return fmt.Errorf("clone %s into %s: %w", src, dst, err)
		}
	}
	if err := dstDoc.SaveAs(ctx, dst); err != nil {
		return fmt.Errorf("failed to save %s: %w", dst, err)
	}
	return nil
}

// Distribute clones source's layers into every target document,
// saving each one. The source itself is skipped when it appears among
// the targets. Returns how many targets were updated; the first
// failure aborts the rest.
func (im *Importer) Distribute(ctx context.Context, source string, targets []string) (int, error) {
	srcDoc, err := im.docs.Open(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer func() { _ = srcDoc.Close() }()

	done := 0
	for _, target := range targets {
		if target == source {
			continue
		}
		doc, err := im.docs.Open(ctx, target)
		if err != nil {
			return done, fmt.Errorf("failed to open %s: %w", target, err)
		}
		err = srcDoc.CloneNodeInto(ctx, doc)
		if err == nil {
			err = doc.SaveAs(ctx, target)
		}
		_ = doc.Close()
		if err != nil {
			return done, fmt.Errorf("failed to save %s: %w", target, err)
		}
		done++
	}
	return done, nil
}
