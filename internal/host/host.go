// Package host declares the capabilities the surrounding application
// supplies to the store and batch layers: a document store that can
// open, create, and convert Krita documents, and a notification sink
// for transient user-facing messages. Everything above this package
// depends only on these interfaces; concrete adapters live in
// subpackages.
package host

import (
	"context"
	"errors"
)

// ErrUnsupported reports an operation the backing adapter cannot
// perform. The command-line adapter converts files but cannot hold
// documents open for node-level surgery.
var ErrUnsupported = errors.New("operation not supported by this document store")

// ExportConfig tunes the image encoder for a single export.
// Compression applies to png output, Lossless and Method to webp.
type ExportConfig struct {
	Ext         string
	Compression int
	Lossless    bool
	Method      int
}

// CanvasParams describes a blank canvas, mirroring what Krita's
// createDocument call wants.
type CanvasParams struct {
	Width      int
	Height     int
	Name       string
	ColorModel string
	ColorDepth string
	Profile    string
	DPI        float64
}

// DocumentStore opens and converts documents.
type DocumentStore interface {
	// Open opens an existing document. A missing file reports
	// os.ErrNotExist.
	Open(ctx context.Context, path string) (Document, error)

	// CreateBlank creates a new unsaved document.
	CreateBlank(ctx context.Context, p CanvasParams) (Document, error)

	// Convert renders src into dst in one step, picking the output
	// format from cfg.
	Convert(ctx context.Context, src, dst string, cfg ExportConfig) error
}

// Document is an open document handle. Handles are not safe for
// concurrent use; Close releases the host's resources.
type Document interface {
	Path() string
	SaveAs(ctx context.Context, path string) error
	Export(ctx context.Context, path string, cfg ExportConfig) error

	// CloneNodeInto clones this document's layers into dst as new
	// top-level layers of dst.
	CloneNodeInto(ctx context.Context, dst Document) error

	// AddFileLayer adds a layer that re-reads path on demand instead
	// of copying its pixels.
	AddFileLayer(ctx context.Context, path string) error

	SetResolution(dpi float64) error
	Close() error
}
