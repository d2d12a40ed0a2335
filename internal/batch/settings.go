// Package batch implements the file-level operations of the batch
// manager: enumerating image files, exporting documents to their
// distribution format, importing images into documents, and the
// per-directory export settings driving it all.
package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/rucksack/internal/cursor"
	"github.com/agentic-research/rucksack/internal/host"
)

// SettingsName is the per-directory settings file consulted by export.
const SettingsName = "export_settings.json"

// Format selects the export output encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatWebPLossless
	FormatWebPLossy
)

var formatNames = []string{"PNG", "WEBP_LOSSLESS", "WEBP_LOSSY"}

// String returns the wire name.
func (f Format) String() string { return formatNames[f] }

// DisplayName returns the human-facing name.
func (f Format) DisplayName() string {
	switch f {
	case FormatPNG:
		return "PNG"
	case FormatWebPLossless:
		return "WebP (Lossless)"
	case FormatWebPLossy:
		return "WebP (Lossy)"
	}
	panic("unknown export format")
}

// ParseFormat maps a wire name back to its Format.
func ParseFormat(name string) (Format, error) {
	if i := slices.Index(formatNames, name); i >= 0 {
		return Format(i), nil
	}
	return 0, fmt.Errorf("unknown format %q (expected one of %s)",
		name, strings.Join(formatNames, ", "))
}

// ExportSettings govern how the documents in one directory are
// exported.
type ExportSettings struct {
	ExportPath     string
	Format         Format
	PNGCompression int
	Oxipng         bool
	WebPMethod     int
}

// DefaultExportSettings are used whenever a directory has no readable
// settings file.
func DefaultExportSettings() ExportSettings {
	return ExportSettings{Format: FormatPNG, PNGCompression: 9, WebPMethod: 5}
}

// ExportConfig translates the settings into encoder configuration.
// With oxipng in play the in-host png encoder runs at minimum effort;
// the external optimizer redoes the compression anyway.
func (s ExportSettings) ExportConfig() host.ExportConfig {
	switch s.Format {
	case FormatPNG:
		compression := s.PNGCompression
		if s.Oxipng {
			compression = 1
		}
		return host.ExportConfig{Ext: "png", Compression: compression}
	case FormatWebPLossless:
		return host.ExportConfig{Ext: "webp", Lossless: true, Method: s.WebPMethod}
	case FormatWebPLossy:
		return host.ExportConfig{Ext: "webp", Lossless: false, Method: s.WebPMethod}
	}
	panic("unknown export format")
}

// OxipngLevel maps the png compression setting onto an oxipng
// optimization level.
func (s ExportSettings) OxipngLevel() int {
	return min(6, s.PNGCompression-1)
}

// DecodeExportSettings decodes the settings file contents. All five
// fields are required and no others are allowed.
func DecodeExportSettings(data []byte) (ExportSettings, error) {
	cur, err := cursor.Parse(data)
	if err != nil {
		return ExportSettings{}, err
	}
	root, err := cur.Object()
	if err != nil {
		return ExportSettings{}, err
	}

	var s ExportSettings
	pathCur, err := root.Get("export_path")
	if err != nil {
		return ExportSettings{}, err
	}
	pathStr, err := pathCur.Str()
	if err != nil {
		return ExportSettings{}, err
	}
	if s.ExportPath, err = pathStr.NonEmpty(); err != nil {
		return ExportSettings{}, err
	}

	formatCur, err := root.Get("format")
	if err != nil {
		return ExportSettings{}, err
	}
	tag, err := formatCur.Enum(formatNames)
	if err != nil {
		return ExportSettings{}, err
	}
	s.Format = Format(tag)

	if s.PNGCompression, err = getIntBetween(root, "png_compression", 1, 9); err != nil {
		return ExportSettings{}, err
	}

	oxipngCur, err := root.Get("oxipng")
	if err != nil {
		return ExportSettings{}, err
	}
	if s.Oxipng, err = oxipngCur.Bool(); err != nil {
		return ExportSettings{}, err
	}

	if s.WebPMethod, err = getIntBetween(root, "webp_method", 0, 6); err != nil {
		return ExportSettings{}, err
	}

	if err := root.DenyUnknown(); err != nil {
		return ExportSettings{}, err
	}
	return s, nil
}

func getIntBetween(root *cursor.Object, key string, lo, hi int64) (int, error) {
	c, err := root.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := c.Int()
	if err != nil {
		return 0, err
	}
	v, err := n.Between(lo, hi)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// EncodeExportSettings renders the settings file contents.
func EncodeExportSettings(s ExportSettings) ([]byte, error) {
	data := map[string]any{
		"export_path":     s.ExportPath,
		"format":          s.Format.String(),
		"png_compression": int64(s.PNGCompression),
		"oxipng":          s.Oxipng,
		"webp_method":     int64(s.WebPMethod),
	}
	out, err := oj.Marshal(data, &ojg.Options{Sort: true, Indent: 2})
	if err != nil {
		return nil, fmt.Errorf("encode export settings: %w", err)
	}
	return out, nil
}

// LoadExportSettings reads dir's settings file. Settings are
// best-effort: an absent file yields the defaults silently, an
// unreadable one yields the defaults with a warning, so a broken file
// never blocks the flows that consult it.
func LoadExportSettings(fsys billy.Filesystem, dir string) ExportSettings {
	path := fsys.Join(dir, SettingsName)
	data, err := util.ReadFile(fsys, path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultExportSettings()
	}
	if err != nil {
		slog.Warn("could not read export settings", "path", path, "err", err)
		return DefaultExportSettings()
	}
	s, err := DecodeExportSettings(data)
	if err != nil {
		slog.Warn("could not decode export settings", "path", path, "err", err)
		return DefaultExportSettings()
	}
	return s
}

// SaveExportSettings writes dir's settings file, creating the
// directory as needed. The write goes through a temp file so readers
// never observe a half-written record.
func SaveExportSettings(fsys billy.Filesystem, dir string, s ExportSettings) error {
	data, err := EncodeExportSettings(s)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir %s: %w", dir, err)
	}
	tmp, err := fsys.TempFile(dir, SettingsName)
	if err != nil {
		return fmt.Errorf("create temp settings in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("write settings %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("write settings %s: %w", tmpName, err)
	}
	path := fsys.Join(dir, SettingsName)
	if err := fsys.Rename(tmpName, path); err != nil {
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}
