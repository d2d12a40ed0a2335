// Package krita adapts the krita command-line binary to the host
// interfaces. The CLI can convert files between formats but cannot
// hold a document open, so node-level operations report
// host.ErrUnsupported; those need the in-process scripting host.
package krita

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/agentic-research/rucksack/internal/host"
)

// Store converts documents by spawning krita.
type Store struct {
	bin string
}

var _ host.DocumentStore = (*Store)(nil)

// NewStore resolves the krita binary. An empty bin falls back to
// "krita" on PATH.
func NewStore(bin string) (*Store, error) {
	if bin == "" {
		bin = "krita"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("locate krita binary: %w", err)
	}
	return &Store{bin: resolved}, nil
}

func (s *Store) Open(ctx context.Context, path string) (host.Document, error) {
	return nil, fmt.Errorf("open %s: %w", path, host.ErrUnsupported)
}

func (s *Store) CreateBlank(ctx context.Context, _ host.CanvasParams) (host.Document, error) {
	return nil, host.ErrUnsupported
}

// Convert renders src into dst. The command-line exporter picks the
// output format from dst's extension; the encoder tuning in cfg is
// only honored by the scripting host and is ignored here.
func (s *Store) Convert(ctx context.Context, src, dst string, _ host.ExportConfig) error {
	cmd := exec.CommandContext(ctx, s.bin, src, "--export", "--export-filename", dst)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("krita export %s failed: %w\n%s", src, err, string(output))
	}
	return nil
}

// RunOxipng recompresses a png in place at the given optimization
// level. An empty bin falls back to "oxipng" on PATH.
func RunOxipng(ctx context.Context, bin string, level int, path string) error {
	if bin == "" {
		bin = "oxipng"
	}
	cmd := exec.CommandContext(ctx, bin,
		"--opt", strconv.Itoa(level), "--threads", "1", path, "--alpha")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("oxipng %s failed: %w\n%s", path, err, string(output))
	}
	return nil
}
