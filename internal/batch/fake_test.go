package batch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/rucksack/internal/host"
	"github.com/agentic-research/rucksack/internal/journal"
)

// fakeHost implements host.DocumentStore over a billy filesystem so
// tests can observe document flows as file contents.
type fakeHost struct {
	fs         billy.Filesystem
	converted  []string
	cfgs       []host.ExportConfig
	openErr    map[string]error
	convertErr map[string]error
}

func newFakeHost(fsys billy.Filesystem) *fakeHost {
	return &fakeHost{
		fs:         fsys,
		openErr:    make(map[string]error),
		convertErr: make(map[string]error),
	}
}

func (h *fakeHost) Open(ctx context.Context, path string) (host.Document, error) {
	if err := h.openErr[path]; err != nil {
		return nil, err
	}
	data, err := util.ReadFile(h.fs, path)
	if err != nil {
		return nil, err
	}
	return &fakeDoc{host: h, path: path, content: string(data)}, nil
}

func (h *fakeHost) CreateBlank(ctx context.Context, _ host.CanvasParams) (host.Document, error) {
	return &fakeDoc{host: h, content: "blank"}, nil
}

func (h *fakeHost) Convert(ctx context.Context, src, dst string, cfg host.ExportConfig) error {
	if err := h.convertErr[src]; err != nil {
		return err
	}
	data, err := util.ReadFile(h.fs, src)
	if err != nil {
		return err
	}
	if err := util.WriteFile(h.fs, dst, data, 0o644); err != nil {
		return err
	}
	h.converted = append(h.converted, src+" -> "+dst)
	h.cfgs = append(h.cfgs, cfg)
	return nil
}

// fakeDoc renders its state into the saved file so assertions can
// read it back: content first, then one line per layer, then the
// resolution when set.
type fakeDoc struct {
	host    *fakeHost
	path    string
	content string
	layers  []string
	dpi     float64
	closed  bool
}

func (d *fakeDoc) Path() string { return d.path }

func (d *fakeDoc) SaveAs(ctx context.Context, path string) error {
	parts := append([]string{d.content}, d.layers...)
	if d.dpi > 0 {
		parts = append(parts, fmt.Sprintf("dpi=%g", d.dpi))
	}
	return util.WriteFile(d.host.fs, path, []byte(strings.Join(parts, "\n")), 0o644)
}

func (d *fakeDoc) Export(ctx context.Context, path string, cfg host.ExportConfig) error {
	return d.host.Convert(ctx, d.path, path, cfg)
}

func (d *fakeDoc) CloneNodeInto(ctx context.Context, dst host.Document) error {
	target := dst.(*fakeDoc)
	target.layers = append(target.layers, "clone of "+d.path)
	return nil
}

func (d *fakeDoc) AddFileLayer(ctx context.Context, path string) error {
	d.layers = append(d.layers, "file:"+path)
	return nil
}

func (d *fakeDoc) SetResolution(dpi float64) error {
	d.dpi = dpi
	return nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

// memNotifier collects notifications for assertions.
type memNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *memNotifier) Notify(sev host.Severity, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sev.String()+": "+msg)
}

func (n *memNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.msgs)
}

// memRecorder collects journal entries without a database.
type memRecorder struct {
	entries []journal.Entry
	err     error
}

func (r *memRecorder) Record(e journal.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}
