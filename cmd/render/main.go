// Command render maps a crash spreadsheet to standalone HTML files without
// running the service. It writes one page per direction subset and map mode,
// e.g. north_heat.html, and prints a notice for subsets with no crashes.
//
// Usage:
//
//	go run ./cmd/render --file crashes.xlsx --out ./maps
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/crash-mapper/internal/adapter/http"
	"github.com/couchcryptid/crash-mapper/internal/adapter/leaflet"
	"github.com/couchcryptid/crash-mapper/internal/adapter/xlsx"
	"github.com/couchcryptid/crash-mapper/internal/config"
	"github.com/couchcryptid/crash-mapper/internal/domain"
	"github.com/couchcryptid/crash-mapper/internal/mapview"
	"github.com/couchcryptid/crash-mapper/internal/observability"
	"github.com/couchcryptid/crash-mapper/internal/pipeline"
)

type options struct {
	file             string
	out              string
	tileURL          string
	classifierConfig string
	verbose          bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render crash maps from a spreadsheet to HTML files",
		Long: `render reads an XLSX or CSV crash spreadsheet in the standard or Segment 5
layout and writes severity-marker and weighted-heatmap pages for all,
northbound and southbound crashes.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "crash spreadsheet to map (.xlsx or .csv)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "maps", "output directory for HTML files")
	cmd.Flags().StringVar(&opts.tileURL, "tile-url", os.Getenv("TILE_URL"), "XYZ tile URL template (default OpenStreetMap)")
	cmd.Flags().StringVar(&opts.classifierConfig, "classifier-config", os.Getenv("CLASSIFIER_CONFIG"), "YAML file overriding north/south direction tokens")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log each dropped row")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	raw, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}
	sets, err := config.LoadDirectionSets(opts.classifierConfig)
	if err != nil {
		return err
	}

	o := pipeline.New(
		xlsx.NewReader(logger),
		domain.NewClassifier(sets),
		mapview.NewBuilder(leaflet.NewRenderer(opts.tileURL)),
		nil,
		logger,
		observability.NewMetricsForTesting(),
	)
	res, err := o.ProcessUpload(ctx, raw)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d crashes (%s layout)\n", opts.file, len(res.Records), res.Format)
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	for _, subset := range pipeline.Subsets {
		panel, _ := res.Panel(subset)
		if panel.Notice != "" {
			fmt.Fprintln(stdout, panel.Notice)
			continue
		}
		for _, mode := range pipeline.Modes {
			path := filepath.Join(opts.out, fmt.Sprintf("%s_%s.html", subset, mode))
			if err := writeMap(path, panel.Layer(mode), httpadapter.MapTitle(subset, mode)); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
		}
	}
	return nil
}

func writeMap(path string, layer mapview.Layer, title string) error {
	page, ok := layer.(httpadapter.HTMLWriter)
	if !ok {
		return fmt.Errorf("%s: layer cannot be rendered as HTML", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := page.WriteHTML(f, title); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}
