// Package pdf implements C5 (PDF Downloader) and C6 (Text Extractor &
// Cleaner): fetching and validating remote government-plan PDFs, then
// turning them into cleaned, page-indexed text.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"planrag/internal/objectstore"
	"planrag/internal/observability"
	"planrag/internal/rerr"
)

// ErrorClass classifies a terminal download failure per §4.5.
type ErrorClass string

const (
	ErrClassNone       ErrorClass = ""
	ErrClassTimeout    ErrorClass = "timeout"
	ErrClassNetwork    ErrorClass = "network"
	ErrClassValidation ErrorClass = "validation"
	ErrClassFilesystem ErrorClass = "filesystem"
	ErrClassUnknown    ErrorClass = "unknown"
)

var pdfMagic = []byte("%PDF-")

// DownloadRequest names a single document to fetch.
type DownloadRequest struct {
	URL      string
	DocID    string
	Metadata map[string]string
}

// DownloadResult is the outcome of one download, successful or not.
type DownloadResult struct {
	DocID        string
	StorageKey   string
	ByteSize     int64
	DownloadedAt time.Time
	ErrorClass   ErrorClass
	Err          error
}

// Downloader implements C5 against an ObjectStore destination (local disk
// by default, S3 when configured) for the atomic-write persistence
// requirement.
type Downloader struct {
	httpClient  *http.Client
	store       objectstore.ObjectStore
	timeout     time.Duration
	retries     int
	concurrency int
}

// Config bundles the tunables named in §6's environment configuration.
type Config struct {
	Timeout     time.Duration
	Retries     int
	Concurrency int
}

// New constructs a Downloader writing into store.
func New(store objectstore.ObjectStore, cfg Config) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	return &Downloader{
		httpClient:  observability.NewHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		store:       store,
		timeout:     cfg.Timeout,
		retries:     cfg.Retries,
		concurrency: cfg.Concurrency,
	}
}

// Download fetches one PDF with retry/backoff and persists it atomically
// under "<docID>.pdf".
func (d *Downloader) Download(ctx context.Context, req DownloadRequest) DownloadResult {
	log := observability.LoggerWithTrace(ctx)
	storageKey := req.DocID + ".pdf"

	var lastErr error
	var lastClass ErrorClass
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 250 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return DownloadResult{DocID: req.DocID, ErrorClass: ErrClassTimeout, Err: ctx.Err()}
			}
		}
		body, class, err := d.fetchOnce(ctx, req.URL)
		if err == nil {
			size, putErr := d.persist(ctx, storageKey, body)
			if putErr != nil {
				return DownloadResult{DocID: req.DocID, ErrorClass: ErrClassFilesystem, Err: rerr.Wrap(putErr, rerr.ErrDownloadFailed, "persisting %s", storageKey)}
			}
			log.Debug().Str("doc_id", req.DocID).Int("attempt", attempt).Int64("bytes", size).Msg("pdf downloaded")
			return DownloadResult{DocID: req.DocID, StorageKey: storageKey, ByteSize: size, DownloadedAt: time.Now().UTC()}
		}
		lastErr, lastClass = err, class
		if class == ErrClassValidation {
			break // not retryable
		}
		log.Warn().Str("doc_id", req.DocID).Int("attempt", attempt).Err(err).Msg("pdf download attempt failed")
	}
	return DownloadResult{DocID: req.DocID, ErrorClass: lastClass, Err: rerr.Wrap(lastErr, rerr.ErrDownloadFailed, "downloading %s", req.URL)}
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, ErrorClass, error) {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrClassUnknown, err
	}
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		if cctx.Err() != nil {
			return nil, ErrClassTimeout, err
		}
		return nil, ErrClassNetwork, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 5 {
		return nil, ErrClassNetwork, fmt.Errorf("server returned %s", resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		return nil, ErrClassValidation, fmt.Errorf("server returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrClassNetwork, err
	}
	if !bytes.HasPrefix(body, pdfMagic) {
		return nil, ErrClassValidation, fmt.Errorf("response body does not begin with PDF magic bytes")
	}
	return body, ErrClassNone, nil
}

func (d *Downloader) persist(ctx context.Context, key string, body []byte) (int64, error) {
	_, err := d.store.Put(ctx, key, bytes.NewReader(body), objectstore.PutOptions{ContentType: "application/pdf"})
	if err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

// DownloadBatch runs Download for each request with bounded concurrency
// (default 3), per §4.5's batch form. One request's failure does not
// cancel the others.
func (d *Downloader) DownloadBatch(ctx context.Context, reqs []DownloadRequest) []DownloadResult {
	results := make([]DownloadResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = d.Download(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
