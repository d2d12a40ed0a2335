package tests

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/rucksack/internal/batch"
	"github.com/agentic-research/rucksack/internal/host"
	"github.com/agentic-research/rucksack/internal/itemfs"
	"github.com/agentic-research/rucksack/internal/journal"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

// testFixture bundles the shared state for integration tests: a real
// temp workspace with a working directory, an export directory, and
// one store per scope, all on the OS filesystem the commands use.
type testFixture struct {
	fsys      billy.Filesystem
	workDir   string
	exportDir string
	global    *rucksack.Store
	local     *rucksack.Store
}

// setup creates the workspace and opens both stores the way cmd does:
// the global store at a configured directory, the local one found by
// walking up from the working directory.
func setup(t *testing.T) *testFixture {
	t.Helper()

	tmp := t.TempDir()
	fsys := rucksack.OSRoot()
	workDir := filepath.Join(tmp, "work")
	exportDir := filepath.Join(tmp, "dist")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	require.NoError(t, os.MkdirAll(exportDir, 0o755))

	global, err := rucksack.Open(fsys, filepath.Join(tmp, "global"), rucksack.ScopeGlobal)
	require.NoError(t, err)
	local, err := rucksack.Open(fsys,
		rucksack.FindLocalDir(fsys, workDir, ""), rucksack.ScopeLocal)
	require.NoError(t, err)

	return &testFixture{
		fsys:      fsys,
		workDir:   workDir,
		exportDir: exportDir,
		global:    global,
		local:     local,
	}
}

// fakeKrita stands in for the krita binary: Convert copies the source
// bytes, which is all the export and import flows ask of it. Node
// level operations are unsupported, exactly like the exec adapter.
type fakeKrita struct {
	converted []string
}

func (f *fakeKrita) Open(ctx context.Context, path string) (host.Document, error) {
	return nil, fmt.Errorf("open %s: %w", path, host.ErrUnsupported)
}

func (f *fakeKrita) CreateBlank(context.Context, host.CanvasParams) (host.Document, error) {
	return nil, host.ErrUnsupported
}

func (f *fakeKrita) Convert(ctx context.Context, src, dst string, _ host.ExportConfig) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	f.converted = append(f.converted, filepath.Base(src)+" -> "+filepath.Base(dst))
	return os.WriteFile(dst, data, 0o644)
}

// saveNode mirrors the cmd save flow: allocate a slot, write the
// document, add the referencing item.
func saveNode(t *testing.T, s *rucksack.Store, name string, kind rucksack.NodeKind, contents []byte) {
	t.Helper()
	n, path, err := s.AllocateNodePath()
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(s.FS(), path, contents, 0o644))
	require.NoError(t, s.Add(name, rucksack.NodeRef{Filename: n, Kind: kind}))
}

func TestIntegration_StoreRoundTrip(t *testing.T) {
	fix := setup(t)

	require.NoError(t, fix.global.Add("Crest", rucksack.Vector{SVG: "<svg>crest</svg>"}))
	saveNode(t, fix.global, "Hero", rucksack.KindLayerGroup, []byte("kra bytes of Hero"))
	require.NoError(t, fix.local.Add("Emboss", rucksack.LayerStyle{ASL: "asl payload"}))

	// A freshly opened store must see exactly the durably written state.
	reopened, err := rucksack.Open(fix.fsys, fix.global.Dir(), rucksack.ScopeGlobal)
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Len())
	assert.Equal(t, "Crest", reopened.Item(0).Name)
	assert.Equal(t, "Hero", reopened.Item(1).Name)

	ref, ok := reopened.Item(1).Data.(rucksack.NodeRef)
	require.True(t, ok)
	assert.Equal(t, rucksack.KindLayerGroup, ref.Kind)
	data, err := reopened.ReadNode(ref.Filename)
	require.NoError(t, err)
	assert.Equal(t, "kra bytes of Hero", string(data))
}

func TestIntegration_MoveBetweenScopes(t *testing.T) {
	fix := setup(t)

	saveNode(t, fix.global, "Hero", rucksack.KindLayer, []byte("hero document"))
	srcAux := fix.global.NodePath(0)

	require.NoError(t, fix.global.MoveTo(fix.local, 0, "Hero"))

	assert.Equal(t, 0, fix.global.Len())
	require.Equal(t, 1, fix.local.Len())
	moved, ok := fix.local.Item(0).Data.(rucksack.NodeRef)
	require.True(t, ok)
	data, err := fix.local.ReadNode(moved.Filename)
	require.NoError(t, err)
	assert.Equal(t, "hero document", string(data))

	_, err = os.Stat(srcAux)
	assert.ErrorIs(t, err, os.ErrNotExist, "source auxiliary file should be gone after the move")

	for _, s := range []*rucksack.Store{fix.global, fix.local} {
		rep, err := s.Doctor()
		require.NoError(t, err)
		assert.True(t, rep.Clean(), "%s store should be clean after the move", s.Scope())
	}
}

func TestIntegration_ExportFlow(t *testing.T) {
	fix := setup(t)

	require.NoError(t, os.WriteFile(filepath.Join(fix.workDir, "a.kra"), []byte("doc a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fix.workDir, "b.kra"), []byte("doc b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fix.workDir, "notes.txt"), []byte("not an image"), 0o644))

	// Settings round-trip through the directory's settings file, the
	// way cmd settings set followed by cmd export does it.
	settings := batch.DefaultExportSettings()
	settings.ExportPath = fix.exportDir
	require.NoError(t, batch.SaveExportSettings(fix.fsys, fix.workDir, settings))
	settings = batch.LoadExportSettings(fix.fsys, fix.workDir)
	require.Equal(t, fix.exportDir, settings.ExportPath)

	j, err := journal.Open(filepath.Join(fix.exportDir, "journal.db"))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	fk := &fakeKrita{}
	exp := batch.NewExporter(fk, fix.fsys, nil, batch.ExporterConfig{Recorder: j})

	sources, err := batch.ListImages(fix.fsys, fix.workDir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.kra", "b.kra"}, sources)

	tasks, skipped, err := exp.Plan(fix.workDir, sources, settings, false)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	updated, err := exp.Run(context.Background(), tasks, settings)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	for _, stem := range []string{"a", "b"} {
		data, err := os.ReadFile(filepath.Join(fix.exportDir, stem+".png"))
		require.NoError(t, err)
		assert.Equal(t, "doc "+stem, string(data))
	}

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "PNG", entries[0].Format)

	// Nothing changed on disk, so a second plan skips everything.
	tasks, skipped, err = exp.Plan(fix.workDir, sources, settings, false)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 2, skipped)
}

func TestIntegration_ItemFSProjection(t *testing.T) {
	fix := setup(t)

	require.NoError(t, fix.global.Add("Crest", rucksack.Vector{SVG: "<svg>crest</svg>"}))
	saveNode(t, fix.local, "Hero", rucksack.KindLayer, []byte("hero document"))

	ifs := itemfs.New(fix.global, fix.local)

	roots, err := ifs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "global", roots[0].Name())
	assert.Equal(t, "local", roots[1].Name())

	f, err := ifs.Open("/global/Crest.svg")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "<svg>crest</svg>", string(data))

	// Node entries read through to the auxiliary document.
	f, err = ifs.Open("/local/Hero.kra")
	require.NoError(t, err)
	data, err = io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hero document", string(data))

	// Items added after mounting are visible without remounting.
	require.NoError(t, fix.global.Add("Badge", rucksack.Vector{SVG: "<svg>badge</svg>", IsText: false}))
	entries, err := ifs.ReadDir("/global")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
