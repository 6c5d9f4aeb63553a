// Command genmock writes sample crash spreadsheets in both supported layouts.
// Each generated sheet is parsed back through the domain package so the
// fixtures are known to load.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -rows 40 -seed 7
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/crash-mapper/internal/adapter/xlsx"
	"github.com/couchcryptid/crash-mapper/internal/domain"
)

var (
	baseDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	// I-25 corridor north of Denver.
	corridorLat = [2]float64{39.90, 40.60}
	corridorLon = [2]float64{-105.02, -104.96}

	directions     = []string{"N", "NB", "S", "SB", "NE", "SW", "E", "W"}
	severityCodes  = []domain.Severity{domain.SeverityPropertyDamage, domain.SeverityInjury, domain.SeverityFatality}
	severityPhrase = []string{"Property Damage", "Injury", "Fatality"}
	notes          = []string{"", "Rear end", "Sideswipe same direction", "Work zone", "Wild animal"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for generated spreadsheets")
	rows := flag.Int("rows", 40, "crash rows per sheet")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	flag.Parse()

	if *out == "" || *rows <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out or non-positive -rows")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x5eed))

	standard := standardRows(rng, *rows)
	if err := writeWorkbook(filepath.Join(*out, "crashes_standard.xlsx"), "Crashes", standard); err != nil {
		return err
	}

	segment5 := segment5Rows(rng, *rows)
	if err := writeWorkbook(filepath.Join(*out, "crashes_segment5.xlsx"), "Segment 5", segment5); err != nil {
		return err
	}
	return nil
}

func standardRows(rng *rand.Rand, n int) [][]any {
	out := [][]any{{"Latitude", "Longitude", "Date", "Severity", "Veh1 Dir", "Road"}}
	for range n {
		sev := weightedSeverity(rng)
		out = append(out, []any{
			between(rng, corridorLat),
			between(rng, corridorLon),
			randomDate(rng),
			string(severityCodes[sev]),
			directions[rng.IntN(len(directions))],
			"I-25",
		})
	}
	return out
}

// segment5Rows lays cells out by position: B date, C direction, D milepost,
// H severity, J notes.
func segment5Rows(rng *rand.Rand, n int) [][]any {
	out := [][]any{
		{domain.Segment5Signature + ": I-25 MP 254-262"},
		{"#", "Date", "Dir", "MP", "", "", "", "Severity", "", "Notes"},
	}
	for i := range n {
		sev := weightedSeverity(rng)
		mp := 254 + rng.Float64()*8
		out = append(out, []any{
			i + 1,
			randomDate(rng),
			directions[rng.IntN(4)],
			fmt.Sprintf("%.1f", mp),
			"", "", "",
			severityPhrase[sev],
			"",
			notes[rng.IntN(len(notes))],
		})
	}
	return out
}

// weightedSeverity favors property damage the way real crash logs do.
func weightedSeverity(rng *rand.Rand) int {
	switch r := rng.IntN(100); {
	case r < 75:
		return 0
	case r < 95:
		return 1
	default:
		return 2
	}
}

func between(rng *rand.Rand, bounds [2]float64) float64 {
	v := bounds[0] + rng.Float64()*(bounds[1]-bounds[0])
	return float64(int(v*1e5)) / 1e5
}

func randomDate(rng *rand.Rand) time.Time {
	return baseDate.AddDate(0, 0, rng.IntN(365))
}

func writeWorkbook(path, sheet string, rows [][]any) error {
	data, err := xlsx.EncodeWorkbook(sheet, rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return printStats(path, data)
}

// printStats parses the generated workbook and reports what the mapper will see.
func printStats(path string, data []byte) error {
	wb, err := xlsx.NewReader(slog.Default()).ReadWorkbook(data)
	if err != nil {
		return fmt.Errorf("read back %s: %w", path, err)
	}
	res, err := domain.ParseWorkbook(wb, domain.DetectFormat(wb.Sheet))
	if err != nil {
		return fmt.Errorf("parse back %s: %w", path, err)
	}
	classified := domain.NewClassifier(domain.DefaultDirectionSets()).ClassifyAll(res.Records)

	counts := map[string]int{}
	for _, r := range classified {
		counts[string(r.Severity)+"/"+string(r.Bucket)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	log.Printf("  format=%s records=%d dropped=%d", res.Format, len(res.Records), len(res.Dropped))
	for _, k := range keys {
		log.Printf("  %-12s %d", k, counts[k])
	}
	return nil
}
