// Package fetcher implements the Monthly Trip Fetcher: it downloads one Parquet file per
// (month, taxi type) from the TLC trip-data endpoint and concatenates them into one table.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
	"github.com/tigerroll/taxiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// JobName identifies the fetcher in logs and metrics.
const JobName = "trip-fetcher"

// DefaultTimeout bounds a single download.
const DefaultTimeout = 300 * time.Second

// Tag columns appended to every downloaded file.
const (
	TaxiTypeColumn    = "taxi_type"
	ExtractedAtColumn = "extracted_at"
)

const moduleName = "fetcher"

// Config describes one fetch.
type Config struct {
	// Start and End bound the months to fetch, inclusive. Only year and month are used.
	Start time.Time
	End   time.Time
	// TaxiTypes are fetched in this order within each month (e.g., "yellow", "green").
	TaxiTypes []string
	// BaseURL is prefixed to each file name.
	BaseURL string
	// Timeout bounds each download. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Attempt records the outcome of one (month, taxi type) download.
type Attempt struct {
	Month    time.Time
	TaxiType string
	Filename string
	URL      string
	// Rows is the number of rows of the downloaded file. Zero when Err is set.
	Rows int64
	// Err is the reason the download was skipped, or nil.
	Err error
}

// OK reports whether the attempt produced a table.
func (a Attempt) OK() bool { return a.Err == nil }

// Result is the outcome of a successful fetch.
type Result struct {
	// RunID identifies the fetch in logs and exported file names.
	RunID string
	// Table holds the downloaded rows in attempt order, with the tag columns appended.
	Table arrow.Table
	// Attempts lists every attempted download in order, failed ones included.
	Attempts []Attempt
}

// Rows returns the number of rows in Table.
func (r *Result) Rows() int64 {
	if r.Table == nil {
		return 0
	}
	return r.Table.NumRows()
}

// Release releases the table.
func (r *Result) Release() {
	if r.Table != nil {
		r.Table.Release()
		r.Table = nil
	}
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock sets the clock used to stamp extracted_at.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithLocation sets the time zone whose wall clock is stored in extracted_at.
func WithLocation(loc *time.Location) Option {
	return func(f *Fetcher) { f.loc = loc }
}

// WithAllocator sets the Arrow allocator for decoded tables.
func WithAllocator(mem memory.Allocator) Option {
	return func(f *Fetcher) { f.mem = mem }
}

// Fetcher downloads monthly trip files sequentially.
type Fetcher struct {
	client   *http.Client
	recorder metrics.MetricRecorder
	mem      memory.Allocator
	now      func() time.Time
	loc      *time.Location
}

// New creates a Fetcher. A nil client uses http.DefaultClient; a nil recorder disables metrics.
func New(client *http.Client, recorder metrics.MetricRecorder, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	f := &Fetcher{
		client:   client,
		recorder: recorder,
		mem:      memory.NewGoAllocator(),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Months returns the first day of every month from start to end, inclusive.
// It is empty when end is in a month before start.
func Months(start, end time.Time) []time.Time {
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var months []time.Time
	for !cur.After(last) {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// Filename returns the published name of a monthly file, e.g. "yellow_tripdata_2025-01.parquet".
func Filename(taxiType string, month time.Time) string {
	return fmt.Sprintf("%s_tripdata_%s.parquet", taxiType, month.Format("2006-01"))
}

// Fetch downloads every (month, taxi type) pair of cfg, months outermost, and concatenates
// the files in that order. A pair whose download fails at the transport level or with a
// non-2xx status is logged and skipped without retry. A body that is not valid Parquet
// aborts the fetch. When no pair succeeds the error wraps exception.ErrNoDataFetched
// together with every per-pair failure.
func (f *Fetcher) Fetch(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, exception.NewBatchErrorf(moduleName, "base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	res := &Result{RunID: uuid.NewString()}
	months := Months(cfg.Start, cfg.End)
	logger.Infof("Fetch %s: fetching data from %s to %s", res.RunID, cfg.Start.Format("2006-01"), cfg.End.Format("2006-01"))
	logger.Infof("Fetch %s: taxi types: %v", res.RunID, cfg.TaxiTypes)

	var (
		tables   []arrow.Table
		failures *multierror.Error
	)
	release := func() {
		for _, t := range tables {
			t.Release()
		}
	}

	for _, month := range months {
		for _, taxiType := range cfg.TaxiTypes {
			name := Filename(taxiType, month)
			attempt := Attempt{Month: month, TaxiType: taxiType, Filename: name, URL: cfg.BaseURL + name}

			logger.Infof("Downloading %s...", name)
			start := time.Now()
			tbl, err := f.fetchOne(ctx, attempt, timeout)
			f.recorder.RecordDuration(ctx, "download", time.Since(start))
			if err != nil {
				if !exception.IsSkippable(err) {
					release()
					return nil, err
				}
				attempt.Err = err
				res.Attempts = append(res.Attempts, attempt)
				failures = multierror.Append(failures, err)
				f.recorder.RecordDownload(ctx, taxiType, metrics.DownloadSkipped)
				logger.Warnf("Failed to fetch %s: %v", name, err)
				continue
			}

			attempt.Rows = tbl.NumRows()
			res.Attempts = append(res.Attempts, attempt)
			tables = append(tables, tbl)
			f.recorder.RecordDownload(ctx, taxiType, metrics.DownloadSucceeded)
			logger.Infof("Successfully fetched %s (%d rows)", name, tbl.NumRows())
		}
	}

	if len(tables) == 0 {
		var cause error = exception.ErrNoDataFetched
		if failures != nil {
			cause = multierror.Append(exception.ErrNoDataFetched, failures.Errors...)
		}
		return nil, exception.NewBatchError(moduleName, "no data was successfully fetched", cause, false)
	}

	combined, err := frame.Concat(tables, f.mem)
	release()
	if err != nil {
		return nil, err
	}
	res.Table = combined

	logger.Infof("Fetch %s: total rows fetched: %d", res.RunID, combined.NumRows())
	logger.Infof("Fetch %s: columns: %v", res.RunID, frame.ColumnNames(combined))
	return res, nil
}

// fetchOne downloads and decodes one file and appends the tag columns.
// Download failures are returned as skippable errors.
func (f *Fetcher) fetchOne(ctx context.Context, a Attempt, timeout time.Duration) (arrow.Table, error) {
	body, err := f.download(ctx, a.URL, timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, exception.NewBatchError(moduleName, "fetch cancelled", ctxErr, false)
		}
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("download of %s failed", a.Filename), err, true)
	}
	extractedAt := wallClock(f.now(), f.loc)

	raw, err := frame.ReadParquet(ctx, bytes.NewReader(body), f.mem)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("%s is not a valid Parquet file", a.Filename), err, false)
	}
	typed := frame.WithStringColumn(raw, TaxiTypeColumn, a.TaxiType, f.mem)
	raw.Release()
	tagged := frame.WithTimestampColumn(typed, ExtractedAtColumn, extractedAt, f.mem)
	typed.Release()
	return tagged, nil
}

func (f *Fetcher) download(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// StatusError is a download answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	status := strings.TrimSpace(e.Status)
	if status == "" {
		status = fmt.Sprint(e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %s", e.URL, status)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// wallClock returns the wall clock of t in loc as a zone-less (UTC) instant, the way
// naive timestamps are stored.
func wallClock(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}
