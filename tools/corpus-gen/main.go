// corpus-gen seeds the decoder fuzz targets: it writes randomized
// well-formed index or settings documents, half of them corrupted,
// into a go fuzz corpus directory.
//
// Usage:
//
//	go run ./tools/corpus-gen -target index -n 64
//	go test -fuzz FuzzDecodeIndex ./internal/rucksack
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/rucksack/internal/batch"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

func main() {
	target := flag.String("target", "index", "corpus to generate: index or settings")
	outDir := flag.String("out", "", "output directory (default the target's testdata corpus)")
	count := flag.Int("n", 32, "number of seeds to generate")
	seed := flag.Int64("seed", 0, "rng seed (0 uses the current time)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	var gen func(*rand.Rand) []byte
	switch *target {
	case "index":
		gen = randomIndex
		if *outDir == "" {
			*outDir = "internal/rucksack/testdata/fuzz/FuzzDecodeIndex"
		}
	case "settings":
		gen = randomSettings
		if *outDir == "" {
			*outDir = "internal/batch/testdata/fuzz/FuzzDecodeExportSettings"
		}
	default:
		fatal(fmt.Errorf("unknown target %q (expected index or settings)", *target))
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatal(err)
	}

	fmt.Printf("Seeding %s with %d inputs (seed %d)\n", *outDir, *count, *seed)
	for i := 0; i < *count; i++ {
		data := gen(rng)
		if rng.Intn(2) == 1 {
			data = mutate(data, rng)
		}
		entry := fmt.Sprintf("go test fuzz v1\nstring(%q)\n", data)
		name := fmt.Sprintf("seed-%03d", i)
		if err := os.WriteFile(filepath.Join(*outDir, name), []byte(entry), 0o644); err != nil {
			fatal(err)
		}
	}
	fmt.Println("Done.")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var itemNames = []string{"Hero", "Crest", "Motto", "Emboss", "Badge", "Caption", "Sketch"}

var nodeKinds = []rucksack.NodeKind{
	rucksack.KindLayer,
	rucksack.KindLayerGroup,
	rucksack.KindLayerVector,
	rucksack.KindMaskSelection,
	rucksack.KindMaskTransparency,
}

func randomIndex(rng *rand.Rand) []byte {
	items := make([]rucksack.Item, rng.Intn(6))
	for i := range items {
		name := itemNames[rng.Intn(len(itemNames))]
		var data rucksack.ItemData
		switch rng.Intn(3) {
		case 0:
			data = rucksack.NodeRef{
				Filename: rng.Intn(1024),
				Kind:     nodeKinds[rng.Intn(len(nodeKinds))],
			}
		case 1:
			data = rucksack.Vector{SVG: "<svg>" + name + "</svg>", IsText: rng.Intn(2) == 1}
		default:
			data = rucksack.LayerStyle{ASL: "asl " + name}
		}
		items[i] = rucksack.Item{Name: name, Data: data}
	}
	out, err := rucksack.EncodeIndex(items)
	if err != nil {
		fatal(err)
	}
	return out
}

func randomSettings(rng *rand.Rand) []byte {
	s := batch.ExportSettings{
		ExportPath:     [...]string{"/tmp/dist", "dist", "../out"}[rng.Intn(3)],
		Format:         batch.Format(rng.Intn(3)),
		PNGCompression: 1 + rng.Intn(9),
		Oxipng:         rng.Intn(2) == 1,
		WebPMethod:     rng.Intn(7),
	}
	out, err := batch.EncodeExportSettings(s)
	if err != nil {
		fatal(err)
	}
	return out
}

// mutate corrupts an encoded document so the corpus also carries
// near-valid inputs.
func mutate(data []byte, rng *rand.Rand) []byte {
	if len(data) == 0 {
		return data
	}
	out := append([]byte(nil), data...)
	switch rng.Intn(4) {
	case 0: // truncate
		return out[:rng.Intn(len(out))]
	case 1: // flip a byte
		out[rng.Intn(len(out))] ^= 0x20
	case 2: // delete a short span
		i := rng.Intn(len(out))
		j := min(len(out), i+1+rng.Intn(8))
		return append(out[:i], out[j:]...)
	default: // duplicate a short span
		i := rng.Intn(len(out))
		j := min(len(out), i+1+rng.Intn(8))
		dup := append([]byte(nil), out[i:j]...)
		return append(out[:j:j], append(dup, out[j:]...)...)
	}
	return out
}
