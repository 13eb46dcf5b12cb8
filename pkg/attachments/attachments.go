// Package attachments downloads the files referenced by author attachment ledgers.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/chatfang/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/observability"
	"github.com/Sumatoshi-tech/chatfang/pkg/report"
	"github.com/Sumatoshi-tech/chatfang/pkg/safeconv"
)

const (
	tracerName = "chatfang/attachments"

	// UntitledName is used when a URL has no usable last path segment.
	UntitledName = "untitled.bin"

	// DefaultConcurrency is the number of downloads in flight when Concurrency is unset.
	DefaultConcurrency = 4

	dirPerm  = 0o750
	filePerm = 0o640
)

// Sentinel errors.
var (
	ErrStatus   = errors.New("attachments: unexpected http status")
	ErrTooLarge = errors.New("attachments: file exceeds size limit")
)

// Stats counts download outcomes.
type Stats struct {
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Downloader fetches attachments into Dir. The zero value is not usable:
// Dir must be set.
type Downloader struct {
	Logger  *slog.Logger
	Metrics *observability.EngineMetrics
	// Client is used for every request. Nil means a client with a 30s timeout.
	Client *http.Client
	// Limiter paces request starts. Nil means unlimited.
	Limiter *rate.Limiter

	// Names holds the file name prefix source per author id, normally
	// report.DisplayNames so anonymized runs never leak real names. Authors
	// missing from Names use their first display name.
	Names map[uint64]string

	Dir string
	// MaxSize caps each file in bytes. Zero means no cap.
	MaxSize uint64
	// Concurrency bounds downloads in flight.
	Concurrency int
}

type job struct {
	rawURL string
	prefix string
}

// DownloadAll fetches the attachments of every author, in id order. A failed
// download is logged and counted; only a cancelled context or an unusable
// output directory make it return an error.
func (d *Downloader) DownloadAll(ctx context.Context, authors map[uint64]*author.Author) (Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "chatfang.attachments")
	defer span.End()

	err := os.MkdirAll(d.Dir, dirPerm)
	if err != nil {
		return Stats{}, fmt.Errorf("create %s: %w", d.Dir, err)
	}

	start := time.Now()

	var downloaded, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency())

	reserved := &nameSet{taken: make(map[string]bool)}

	for _, j := range d.jobs(authors) {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			err := d.wait(gctx)
			if err != nil {
				return err
			}

			dest, err := d.fetch(gctx, j, reserved)

			switch {
			case errors.Is(err, errSkipped):
				skipped.Add(1)
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				failed.Add(1)
				d.Metrics.RecordFailure(gctx, "download")
				d.logger().WarnContext(gctx, "attachments: download failed", "url", j.rawURL, "error", err)
			default:
				downloaded.Add(1)
				d.logger().DebugContext(gctx, "attachments: downloaded", "url", j.rawURL, "path", dest)
			}

			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := Stats{
		Downloaded: int(downloaded.Load()),
		Failed:     int(failed.Load()),
		Skipped:    int(skipped.Load()),
	}

	span.SetAttributes(
		attribute.Int("attachments.downloaded", stats.Downloaded),
		attribute.Int("attachments.failed", stats.Failed),
		attribute.Int("attachments.skipped", stats.Skipped),
	)

	d.logger().InfoContext(ctx, "attachments: done",
		"downloaded", stats.Downloaded, "failed", stats.Failed, "skipped", stats.Skipped,
		"elapsed", time.Since(start))

	if err != nil {
		return stats, fmt.Errorf("download attachments: %w", err)
	}

	return stats, nil
}

func (d *Downloader) jobs(authors map[uint64]*author.Author) []job {
	var out []job

	for _, id := range mapx.SortedKeys(authors) {
		a := authors[id]

		name, ok := d.Names[id]
		if !ok {
			name = a.DisplayName()
		}

		prefix := report.SanitizeFilename(name)

		for _, raw := range a.AttachmentsLedger {
			out = append(out, job{rawURL: raw, prefix: prefix})
		}
	}

	return out
}

var errSkipped = errors.New("attachments: skipped")

func (d *Downloader) fetch(ctx context.Context, j job, reserved *nameSet) (string, error) {
	u, err := url.Parse(j.rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errSkipped
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "chatfang.attachments.fetch",
		trace.WithAttributes(attribute.String("url.host", u.Host)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	if d.MaxSize > 0 && resp.ContentLength > safeconv.ClampToInt64(d.MaxSize) {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	// Named after the final URL once redirects are followed.
	dest := filepath.Join(d.Dir, reserved.reserve(j.prefix+"-"+FileName(resp.Request.URL)))

	return dest, d.save(resp.Body, dest)
}

func (d *Downloader) save(body io.Reader, dest string) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	src := body
	if d.MaxSize > 0 {
		src = io.LimitReader(body, safeconv.ClampToInt64(d.MaxSize)+1)
	}

	n, err := io.Copy(f, src)

	closeErr := f.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("copy: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close %s: %w", dest, closeErr)
	case d.MaxSize > 0 && n > safeconv.ClampToInt64(d.MaxSize):
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.MaxSize)
	}

	if err != nil {
		return errors.Join(err, os.Remove(dest))
	}

	return nil
}

// nameSet hands out each file name at most once per run. A taken name gets
// "-2", "-3", ... inserted before its extension. Names are compared
// case-insensitively.
type nameSet struct {
	taken map[string]bool
	mu    sync.Mutex
}

func (ns *nameSet) reserve(name string) string {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name

	for n := 2; ns.taken[strings.ToLower(candidate)]; n++ {
		candidate = base + "-" + strconv.Itoa(n) + ext
	}

	ns.taken[strings.ToLower(candidate)] = true

	return candidate
}

// FileName returns the sanitized last path segment of u, or UntitledName.
func FileName(u *url.URL) string {
	if u == nil {
		return UntitledName
	}

	last := u.Path[strings.LastIndex(u.Path, "/")+1:]
	if last == "" {
		return UntitledName
	}

	name := report.SanitizeFilename(last)
	if name == "_" {
		return UntitledName
	}

	return name
}

func (d *Downloader) wait(ctx context.Context) error {
	if d.Limiter == nil {
		return nil
	}

	err := d.Limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return nil
}

func (d *Downloader) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}

	return DefaultConcurrency
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}

	return &http.Client{Timeout: 30 * time.Second}
}

func (d *Downloader) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}

	return slog.Default()
}
