// Package ingest loads exported chat-log CSV files into messages.
package ingest

import (
	"context"
	"encoding/csv"
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
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
)

const (
	tracerName   = "chatfang/ingest"
	csvExtension = ".csv"
)

// ErrNotDirectory is returned when the source path is not a directory.
var ErrNotDirectory = errors.New("ingest: source is not a directory")

// RecordError locates a malformed record.
type RecordError struct {
	Err  error
	Path string
	Line int
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Corpus is every message loaded from a source directory.
type Corpus struct {
	// Channels maps channel id to channel name (the source file stem).
	Channels map[uint64]string
	Messages []chatlog.Message
}

// LoadDir parses every *.csv file in dir. Files are visited in name order and
// numbered 1..n as channel ids; they are parsed concurrently and their
// messages concatenated in file order. The first malformed record aborts the
// load.
func LoadDir(ctx context.Context, dir string, logger *slog.Logger) (*Corpus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "chatfang.ingest",
		trace.WithAttributes(attribute.String("ingest.dir", dir)))
	defer span.End()

	start := time.Now()

	paths, err := ListFiles(dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list files failed")

		return nil, err
	}

	perFile := make([][]chatlog.Message, len(paths))
	channels := make(map[uint64]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		channelID := uint64(i + 1)
		channels[channelID] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			messages, readErr := ReadFile(path, channelID)
			if readErr != nil {
				return readErr
			}

			perFile[i] = messages

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")

		return nil, err
	}

	total := 0
	for _, messages := range perFile {
		total += len(messages)
	}

	corpus := &Corpus{
		Channels: channels,
		Messages: make([]chatlog.Message, 0, total),
	}

	for _, messages := range perFile {
		corpus.Messages = append(corpus.Messages, messages...)
	}

	span.SetAttributes(attribute.Int("ingest.files", len(paths)), attribute.Int("ingest.messages", total))
	logger.InfoContext(ctx, "ingest: import done",
		"files", len(paths), "messages", total, "elapsed", time.Since(start))

	return corpus, nil
}

// ListFiles returns the *.csv files directly inside dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	var paths []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), csvExtension) {
			continue
		}

		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	slices.Sort(paths)

	return paths, nil
}

// ReadFile parses one exported CSV file. The first row is a header and is skipped.
func ReadFile(path string, channelID uint64) ([]chatlog.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	messages, err := Read(f, channelID)
	if err != nil {
		var recErr *RecordError
		if errors.As(err, &recErr) {
			recErr.Path = path
		}

		return nil, err
	}

	return messages, nil
}

// Read parses exported CSV rows from r, skipping the header row.
func Read(r io.Reader, channelID uint64) ([]chatlog.Message, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = chatlog.RecordFields
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var messages []chatlog.Message

	for first := true; ; first = false {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return messages, nil
		}

		if err != nil {
			line := 0

			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}

			return nil, &RecordError{Line: line, Err: fmt.Errorf("%w: %w", chatlog.ErrMalformedRecord, err)}
		}

		if first {
			continue
		}

		line, _ := reader.FieldPos(0)

		msg, err := chatlog.ParseRecord(fields, channelID)
		if err != nil {
			return nil, &RecordError{Line: line, Err: err}
		}

		messages = append(messages, msg)
	}
}
