package batch

import (
	"errors"
	"strings"
	"testing"

	"github.com/agentic-research/rucksack/internal/cursor"
)

func FuzzDecodeExportSettings(f *testing.F) {
	// Seed corpus
	f.Add(`{"export_path": "/tmp/dist", "format": "PNG", "png_compression": 9, "oxipng": false, "webp_method": 5}`)
	f.Add(`{"export_path": "/tmp/dist", "format": "WEBP_LOSSY", "png_compression": 1, "oxipng": true, "webp_method": 0}`)
	f.Add(`{"export_path": "", "format": "PNG", "png_compression": 9, "oxipng": false, "webp_method": 5}`)
	f.Add(`{"export_path": "/tmp/dist", "format": "GIF", "png_compression": 9, "oxipng": false, "webp_method": 5}`)
	f.Add(`{"export_path": "/tmp/dist", "format": "PNG", "png_compression": 10, "oxipng": false, "webp_method": 5}`)
	f.Add(`{}`)
	f.Add(`{`)

	f.Fuzz(func(t *testing.T, data string) {
		s, err := DecodeExportSettings([]byte(data))
		if err != nil {
			var perr *cursor.Error
			if !errors.As(err, &perr) && !strings.Contains(err.Error(), "parse json") {
				t.Fatalf("unpositioned decode error: %v", err)
			}
			return
		}
		out, err := EncodeExportSettings(s)
		if err != nil {
			t.Fatalf("encode decoded settings: %v", err)
		}
		again, err := DecodeExportSettings(out)
		if err != nil {
			t.Fatalf("re-decode encoded settings: %v", err)
		}
		if again != s {
			t.Fatalf("round trip changed settings: %#v != %#v", again, s)
		}
	})
}
