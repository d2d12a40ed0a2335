package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/agentic-research/rucksack/internal/host"
	"github.com/agentic-research/rucksack/internal/journal"
)

// Task is one planned export.
type Task struct {
	Source      string
	Destination string
}

// OxipngRunner recompresses one png in place at the given
// optimization level.
type OxipngRunner func(ctx context.Context, level int, path string) error

// Recorder receives a journal entry for each completed export.
// *journal.Journal satisfies it.
type Recorder interface {
	Record(e journal.Entry) error
}

// ExporterConfig carries the optional collaborators.
type ExporterConfig struct {
	Oxipng   OxipngRunner // nil: the oxipng setting is ignored
	Recorder Recorder     // nil: no history is kept
}

// Exporter renders documents into their distribution format.
type Exporter struct {
	docs   host.DocumentStore
	fs     billy.Filesystem
	notify host.Notifier
	oxipng OxipngRunner
	rec    Recorder
}

func NewExporter(docs host.DocumentStore, fsys billy.Filesystem, notify host.Notifier, cfg ExporterConfig) *Exporter {
	if notify == nil {
		notify = host.NopNotifier()
	}
	return &Exporter{docs: docs, fs: fsys, notify: notify, oxipng: cfg.Oxipng, rec: cfg.Recorder}
}

// Plan decides which sources actually need exporting. A source whose
// destination is at least as new is skipped unless force is set.
// Returns the tasks plus the number of skipped sources.
func (e *Exporter) Plan(dir string, sources []string, settings ExportSettings, force bool) ([]Task, int, error) {
	ext := settings.ExportConfig().Ext
	var tasks []Task
	skipped := 0
	for _, name := range sources {
		src := e.fs.Join(dir, name)
		dst := e.fs.Join(settings.ExportPath, Stem(name)+"."+ext)
		if !force {
			fresh, err := e.destinationFresh(src, dst)
			if err != nil {
				return nil, 0, err
			}
			if fresh {
				skipped++
				continue
			}
		}
		tasks = append(tasks, Task{Source: src, Destination: dst})
	}
	return tasks, skipped, nil
}

// destinationFresh reports whether dst exists and is at least as new
// as src. A missing file on either side forces the export; any other
// stat failure aborts the plan.
func (e *Exporter) destinationFresh(src, dst string) (bool, error) {
	srcInfo, err := e.fs.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not save to %s: %w", dst, err)
	}
	dstInfo, err := e.fs.Stat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not save to %s: %w", dst, err)
	}
	return !srcInfo.ModTime().After(dstInfo.ModTime()), nil
}

// Run executes the planned exports in order. An export failure aborts
// the batch; oxipng failures are reported per file without stopping
// the rest. Compressors run concurrently and are all waited for
// before Run returns, even on abort. Returns the number of exports
// performed.
func (e *Exporter) Run(ctx context.Context, tasks []Task, settings ExportSettings) (int, error) {
	cfg := settings.ExportConfig()
	compress := settings.Format == FormatPNG && settings.Oxipng && e.oxipng != nil

	var wg sync.WaitGroup
	defer wg.Wait()

	updated := 0
	for _, task := range tasks {
		start := time.Now()
		if err := e.docs.Convert(ctx, task.Source, task.Destination, cfg); err != nil {
			e.notify.Notify(host.SeverityError, fmt.Sprintf("could not export %s", task.Source))
			return updated, fmt.Errorf("export %s: %w", task.Source, err)
		}
		if e.rec != nil {
			entry := journal.Entry{
				Source:      task.Source,
				Destination: task.Destination,
				Format:      settings.Format.String(),
				Duration:    time.Since(start),
			}
			if err := e.rec.Record(entry); err != nil {
				slog.Warn("could not record export", "source", task.Source, "err", err)
			}
		}
		if compress {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if err := e.oxipng(ctx, settings.OxipngLevel(), path); err != nil {
					e.notify.Notify(host.SeverityWarning, fmt.Sprintf("could not run oxipng: %s", err))
				}
			}(task.Destination)
		}
		updated++
		slog.Info("exported", "source", task.Source, "destination", task.Destination)
	}
	return updated, nil
}
