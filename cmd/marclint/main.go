// Command marclint validates MARC records in MRK text format against
// the bundled MARC 21 knowledge base.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-json"

	"github.com/gomarc/marclsp"
	"github.com/gomarc/marclsp/datasets"
	"github.com/gomarc/marclsp/engine"
	"github.com/gomarc/marclsp/kb"
	"github.com/gomarc/marclsp/resolver"
)

var cli struct {
	Output   string           `help:"Output format: text or json." enum:"text,json" default:"text"`
	Offline  bool             `help:"Skip remote documentation lookups for unknown tags."`
	CacheDir string           `help:"Directory for the on-disk documentation cache." type:"path"`
	Stats    bool             `help:"Print validation and cache statistics after the run."`
	Verbose  bool             `help:"Enable debug logging."`
	Version  kong.VersionFlag `help:"Print version and exit."`

	Files []string `arg:"" help:"MRK files to validate, or - for stdin."`
}

// fileReport is the per-file JSON output record.
type fileReport struct {
	File        string               `json:"file"`
	Valid       bool                 `json:"valid"`
	Errors      int                  `json:"errors"`
	Warnings    int                  `json:"warnings"`
	Diagnostics []marclsp.Diagnostic `json:"diagnostics,omitempty"`
	Duration    string               `json:"duration"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("marclint"),
		kong.Description("Validate MARC bibliographic records in MRK format."),
		kong.Vars{"version": "marclint " + marclsp.Version},
	)
	os.Exit(run())
}

func run() int {
	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	base, err := kb.Load(datasets.Bundled()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marclint: loading knowledge base: %v\n", err)
		return 1
	}

	opts := marclsp.DefaultOptions()
	for _, opt := range []marclsp.Option{
		marclsp.WithRemote(!cli.Offline),
		marclsp.WithCacheDir(cli.CacheDir),
		marclsp.WithLogger(logger),
	} {
		opt(opts)
	}

	res, err := resolver.New(base, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marclint: %v\n", err)
		return 1
	}
	defer res.Close()

	v := engine.New(base,
		marclsp.WithRemote(opts.RemoteEnabled),
		marclsp.WithCacheDir(opts.CacheDir),
		marclsp.WithLogger(logger),
	)
	v.SetResolver(res)

	ctx := context.Background()
	hasErrors := false
	reports := make([]fileReport, 0, len(cli.Files))

	for _, file := range cli.Files {
		report, failed := validateFile(ctx, v, file)
		reports = append(reports, report)
		if failed {
			hasErrors = true
		}
	}

	if cli.Output == "json" {
		out, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marclint: encoding output: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
	}

	if cli.Stats {
		printStats(v.Metrics().Snapshot())
	}

	if hasErrors {
		return 1
	}
	return 0
}

func validateFile(ctx context.Context, v *engine.Validator, file string) (fileReport, bool) {
	var (
		data []byte
		err  error
	)
	name := file
	if file == "-" {
		name = "stdin"
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "marclint: reading %s: %v\n", name, err)
		return fileReport{File: name, Valid: false, Errors: 1}, true
	}

	start := time.Now()
	_, result := v.ValidateText(ctx, string(data))
	duration := time.Since(start)

	report := fileReport{
		File:        name,
		Valid:       result.Valid,
		Errors:      result.Errors(),
		Warnings:    result.Warnings(),
		Diagnostics: result.Diagnostics,
		Duration:    duration.Round(time.Microsecond).String(),
	}

	if cli.Output == "text" {
		printTextReport(report)
	}
	return report, !result.Valid
}

func printTextReport(r fileReport) {
	status := "VALID"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Printf("== %s ==\n", r.File)
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Errors: %d, Warnings: %d\n", r.Errors, r.Warnings)

	if len(r.Diagnostics) > 0 {
		fmt.Println("\nDiagnostics:")
		for _, d := range r.Diagnostics {
			fmt.Printf("  %s %d:%d %s\n", severityIcon(d.Severity), d.Line+1, d.StartColumn+1, d.Message)
		}
	}
	fmt.Println()
}

func severityIcon(s marclsp.Severity) string {
	switch s {
	case marclsp.SeverityError:
		return "ERROR"
	case marclsp.SeverityWarning:
		return "WARN "
	default:
		return "     "
	}
}

func printStats(s marclsp.Snapshot) {
	fmt.Fprintf(os.Stderr, "Records parsed:    %d\n", s.Parses)
	fmt.Fprintf(os.Stderr, "Validations:       %d (%d valid)\n", s.Validations, s.ValidationsValid)
	fmt.Fprintf(os.Stderr, "Diagnostics:       %d errors, %d warnings\n", s.Errors, s.Warnings)
	fmt.Fprintf(os.Stderr, "Cache hit rate:    %.1f%% (%d hits, %d misses)\n",
		s.CacheHitRate*100, s.CacheHits, s.CacheMisses)
	fmt.Fprintf(os.Stderr, "Remote fetches:    %d (%d failed, %d stale served)\n",
		s.Fetches, s.FetchFailures, s.StaleServed)
	fmt.Fprintf(os.Stderr, "Avg validation:    %s\n", s.AvgValidation.Round(time.Microsecond))
}
