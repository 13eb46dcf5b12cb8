// Package report renders an aggregation result: CSV sheets, minute-of-day
// time maps, a terminal summary and machine-readable summaries.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/chatfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/observability"
	"github.com/Sumatoshi-tech/chatfang/pkg/terminal"
)

const tracerName = "chatfang/report"

// Format names one output of the exporter.
type Format string

// Formats.
const (
	FormatCSV      Format = "csv"
	FormatPlot     Format = "plot"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatSnapshot Format = "snapshot"
)

// Output file names.
const (
	JSONName     = "stats.json"
	YAMLName     = "stats.yaml"
	SnapshotName = "stats.json.lz4"
)

// Defaults.
const (
	DefaultTopWords       = 50
	DefaultServerTopWords = 1000
	defaultAuthorDir      = "authors"
	defaultGraphDir       = "graphs"
	dirPerm               = 0o750
)

// AllFormats lists every supported format.
var AllFormats = []Format{FormatCSV, FormatPlot, FormatText, FormatJSON, FormatYAML, FormatSnapshot}

// DefaultFormats is what a run produces unless told otherwise.
var DefaultFormats = []Format{FormatCSV, FormatPlot, FormatText}

// Sentinel errors.
var (
	ErrUnknownFormat = errors.New("report: unknown format")
	ErrNoResult      = errors.New("report: nil result")
	// ErrPartialExport wraps the per-author failures of an otherwise finished export.
	ErrPartialExport = errors.New("report: some outputs failed")
)

// ParseFormats validates and deduplicates format names, keeping their order.
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))

	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		if f == "" {
			continue
		}

		if !slices.Contains(AllFormats, f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
		}

		if !slices.Contains(formats, f) {
			formats = append(formats, f)
		}
	}

	return formats, nil
}

// Exporter writes the configured formats for one result.
type Exporter struct {
	Logger  *slog.Logger
	Metrics *observability.EngineMetrics
	// Out receives the text summary. Nil means os.Stdout.
	Out io.Writer
	// Now stamps the summary documents. Nil means time.Now.
	Now func() time.Time

	// Dir receives the server outputs.
	Dir string
	// AuthorDir receives per-author CSVs. Empty means Dir/authors.
	AuthorDir string
	// GraphDir receives per-author time maps. Empty means Dir/graphs.
	GraphDir string
	RunID    string

	Formats  []Format
	Terminal terminal.Config

	// TopWords bounds the per-author word lists and the server top-word set
	// they are filtered against.
	TopWords       int
	ServerTopWords int
	Anonymize      bool
}

// ExportAll writes every configured format. Failures writing server-level
// outputs abort the export; per-author failures are logged, counted and
// returned together, wrapped in ErrPartialExport, once everything else is done.
func (e *Exporter) ExportAll(ctx context.Context, result *aggregate.Result, channels map[uint64]string) error {
	if result == nil {
		return ErrNoResult
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "chatfang.export",
		trace.WithAttributes(
			attribute.Int("export.authors", len(result.Authors)),
			attribute.StringSlice("export.formats", FormatNames(e.formats())),
		))
	defer span.End()

	start := time.Now()
	v := newView(result, channels, e.topWords(), e.serverTopWords(), e.Anonymize)

	var failures []error

	for _, f := range e.formats() {
		failed, err := e.export(ctx, f, v)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "export failed")

			return fmt.Errorf("export %s: %w", f, err)
		}

		failures = append(failures, failed...)
	}

	e.logger().InfoContext(ctx, "report: export done",
		"dir", e.Dir, "authors", len(v.authors), "failures", len(failures), "elapsed", time.Since(start))

	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial export")

		return fmt.Errorf("%w: %d failures: %w", ErrPartialExport, len(failures), errors.Join(failures...))
	}

	return nil
}

func (e *Exporter) export(ctx context.Context, f Format, v *view) ([]error, error) {
	switch f {
	case FormatCSV:
		return e.exportCSV(ctx, v)
	case FormatPlot:
		return e.exportPlots(ctx, v)
	case FormatText:
		return nil, writeText(e.out(), v, e.Terminal)
	case FormatJSON:
		return nil, e.writeFile(filepath.Join(e.Dir, JSONName), func(w io.Writer) error {
			return WriteJSON(w, v.summary(e.RunID, e.now()))
		})
	case FormatYAML:
		return nil, e.writeFile(filepath.Join(e.Dir, YAMLName), func(w io.Writer) error {
			return WriteYAML(w, v.summary(e.RunID, e.now()))
		})
	case FormatSnapshot:
		return nil, e.writeFile(filepath.Join(e.Dir, SnapshotName), func(w io.Writer) error {
			return WriteSnapshot(w, v.summary(e.RunID, e.now()))
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func (e *Exporter) exportCSV(ctx context.Context, v *view) ([]error, error) {
	err := e.writeFile(filepath.Join(e.Dir, ServerCSVName), func(w io.Writer) error {
		return writeServerCSV(w, v)
	})
	if err != nil {
		return nil, err
	}

	dir := e.authorDir()

	return e.eachAuthor(ctx, v, "csv", dir, func(a *author.Author) error {
		return e.writeFile(filepath.Join(dir, v.stems[a.ID]+".csv"), func(w io.Writer) error {
			return writeAuthorCSV(w, v, a)
		})
	})
}

func (e *Exporter) exportPlots(ctx context.Context, v *view) ([]error, error) {
	dir := e.graphDir()

	failures, err := e.eachAuthor(ctx, v, "plot", dir, func(a *author.Author) error {
		chart := TimemapChart("Time Map for "+v.name(a), a)

		return e.writeFile(filepath.Join(dir, v.stems[a.ID]+timemapSuffix), func(w io.Writer) error {
			return renderChart(w, chart)
		})
	})
	if err != nil {
		return nil, err
	}

	err = e.writeFile(filepath.Join(e.Dir, serverGraphTitle+timemapSuffix), func(w io.Writer) error {
		return renderChart(w, TimemapChart(serverGraphTitle, v.server))
	})
	if err != nil {
		return nil, err
	}

	err = e.writeFile(filepath.Join(e.Dir, channelGraphTitle+timemapSuffix), func(w io.Writer) error {
		return renderChart(w, ChannelChart(channelGraphTitle, v.server, v.channels))
	})
	if err != nil {
		return nil, err
	}

	return failures, nil
}

// eachAuthor runs write for every author in id order. A failure is recorded
// and the loop moves on to the next author.
func (e *Exporter) eachAuthor(
	ctx context.Context, v *view, kind, dir string, write func(a *author.Author) error,
) ([]error, error) {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var failures []error

	for i, a := range v.authors {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		err = write(a)
		if err != nil {
			e.Metrics.RecordFailure(ctx, kind)
			e.logger().WarnContext(ctx, "report: author export failed",
				"kind", kind, "author", a.ID, "error", err)

			failures = append(failures, fmt.Errorf("author %d %s: %w", a.ID, kind, err))

			continue
		}

		e.logger().DebugContext(ctx, "report: author exported",
			"kind", kind, "n", i+1, "of", len(v.authors), "author", a.ID)
	}

	return failures, nil
}

func (e *Exporter) writeFile(path string, write func(w io.Writer) error) error {
	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = write(f)
	if err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", path, err), f.Close())
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

func (e *Exporter) formats() []Format {
	if e.Formats == nil {
		return DefaultFormats
	}

	return e.Formats
}

func (e *Exporter) topWords() int {
	if e.TopWords > 0 {
		return e.TopWords
	}

	return DefaultTopWords
}

func (e *Exporter) serverTopWords() int {
	if e.ServerTopWords > 0 {
		return e.ServerTopWords
	}

	return DefaultServerTopWords
}

func (e *Exporter) authorDir() string {
	if e.AuthorDir != "" {
		return e.AuthorDir
	}

	return filepath.Join(e.Dir, defaultAuthorDir)
}

func (e *Exporter) graphDir() string {
	if e.GraphDir != "" {
		return e.GraphDir
	}

	return filepath.Join(e.Dir, defaultGraphDir)
}

func (e *Exporter) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}

	return os.Stdout
}

func (e *Exporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}

	return time.Now()
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}

	return slog.Default()
}

// FormatNames converts formats to their configuration names.
func FormatNames(formats []Format) []string {
	out := make([]string, len(formats))

	for i, f := range formats {
		out[i] = string(f)
	}

	return out
}
