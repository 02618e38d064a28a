// Package download fetches the files of a GDC manifest.
//
// Every file is checked against its manifest size and md5 digest. Files that
// already verify are skipped, so running the same manifest again only fetches
// what is missing or corrupted.
package download

import (
	"context"
	"crypto/md5" //nolint:gosec // GDC publishes md5 checksums
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/gdcpq/internal/gdc"
	"github.com/askiada/gdcpq/internal/logging"
	"github.com/askiada/gdcpq/internal/manifest"
	"github.com/askiada/gdcpq/pkg/pipeline"
	"github.com/askiada/gdcpq/pkg/pipeline/drawer"
	"github.com/askiada/gdcpq/pkg/pipeline/logger"
	"github.com/askiada/gdcpq/pkg/pipeline/measure"
	"github.com/askiada/gdcpq/pkg/pipeline/model"
)

const (
	defaultWorkers   = 4
	defaultChunkSize = 8192
)

var (
	ErrSizeMismatch = errors.New("size mismatch")
	ErrChecksum     = errors.New("md5 verification failed")
)

// Fetcher streams a GDC file. *gdc.Client implements it.
type Fetcher interface {
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

type Options struct {
	Dir          string
	Workers      int
	ChunkSize    int
	Retries      int
	RetryBackoff time.Duration
	// Progress receives a progress bar when set.
	Progress io.Writer
	// GraphFile receives the DOT graph of the pipeline when set.
	GraphFile string
}

type Downloader struct {
	fetcher Fetcher
	opts    Options
}

// New creates the download directory if needed.
func New(fetcher Fetcher, opts Options) (*Downloader, error) {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	err := os.MkdirAll(opts.Dir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", opts.Dir)
	}

	return &Downloader{fetcher: fetcher, opts: opts}, nil
}

type fileState struct {
	entry    manifest.Entry
	verified bool
}

func (d *Downloader) path(entry manifest.Entry) string {
	return filepath.Join(d.opts.Dir, entry.Filename)
}

func (d *Downloader) pipelineOptions(ctx context.Context, m *measure.DefaultMeasure) []model.PipelineOption {
	opts := []model.PipelineOption{logger.PipelineLogger(logging.FromContext(ctx))}
	if d.opts.GraphFile != "" {
		opts = append(opts,
			measure.PipelineMeasure(m),
			drawer.PipelineDrawer(drawer.NewDOTDrawer(d.opts.GraphFile), m),
		)
	}

	return opts
}

func (d *Downloader) addVerify(pipe *pipeline.Pipeline, entries []manifest.Entry) (*model.Step[fileState], error) {
	root, err := pipeline.AddRootStep(pipe, "manifest", func(ctx context.Context, rootChan chan<- manifest.Entry) error {
		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- entry:
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return pipeline.AddStepOneToOne(pipe, "verify", root, func(ctx context.Context, entry manifest.Entry) (fileState, error) {
		ok, err := verify(d.path(entry), entry.MD5, entry.Size, d.opts.ChunkSize)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("file", entry.Filename).Warn("unable to verify local file")
		}

		return fileState{entry: entry, verified: ok}, nil
	}, pipeline.StepConcurrency[fileState](d.opts.Workers))
}

// Run downloads the entries. Per-file failures are reported in the summary;
// the returned error is only set when the run itself stops, for instance on
// context cancellation, and comes with the partial summary.
func (d *Downloader) Run(ctx context.Context, entries []manifest.Entry) (*Summary, error) {
	start := time.Now()
	m := measure.NewDefaultMeasure()

	pipe, err := pipeline.New(ctx, d.pipelineOptions(ctx, m)...)
	if err != nil {
		return nil, err
	}

	verified, err := d.addVerify(pipe, entries)
	if err != nil {
		return nil, err
	}

	route, err := pipeline.AddSplitterFn(pipe, "route", verified, []pipeline.SplitterFn[fileState]{
		func(fs fileState) (bool, error) { return fs.verified, nil },
		func(fs fileState) (bool, error) { return !fs.verified, nil },
	}, pipeline.SplitterBufferSize[fileState](d.opts.Workers))
	if err != nil {
		return nil, err
	}
	present, _ := route.Get()
	missing, _ := route.Get()

	skipped, err := pipeline.AddStepOneToOne(pipe, "skip", present, func(_ context.Context, fs fileState) (Result, error) {
		return Result{Entry: fs.entry, Status: StatusSkipped}, nil
	})
	if err != nil {
		return nil, err
	}

	fetched, err := pipeline.AddStepOneToOne(pipe, "fetch", missing, func(ctx context.Context, fs fileState) (Result, error) {
		res := d.fetch(ctx, fs.entry)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		return res, nil
	}, pipeline.StepConcurrency[Result](d.opts.Workers))
	if err != nil {
		return nil, err
	}

	results, err := pipeline.AddMerger(pipe, "collect", skipped, fetched)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	summary := &Summary{Total: len(entries)}
	snapshot := func() *Summary {
		mu.Lock()
		defer mu.Unlock()
		summary.Duration = time.Since(start)

		return summary.clone()
	}

	var bar *pb.ProgressBar
	if d.opts.Progress != nil {
		bar = pb.New(len(entries))
		bar.SetWriter(d.opts.Progress)
		bar.Set("prefix", "Downloading ")
		bar.Start()
	}

	err = pipeline.AddSink(pipe, "summary", results, func(ctx context.Context, res Result) error {
		mu.Lock()
		summary.add(res)
		counts := fmt.Sprintf(" completed: %d, skipped: %d, failed: %d", summary.Completed, summary.Skipped, summary.Failed)
		mu.Unlock()

		if bar != nil {
			bar.Set("suffix", counts)
			bar.Increment()
		}
		if res.Status == StatusFailed {
			logging.FromContext(ctx).WithError(res.Err).WithFields(logrus.Fields{
				"file": res.Entry.Filename,
				"id":   res.Entry.ID,
			}).Error("download failed")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"files":   len(entries),
		"workers": d.opts.Workers,
		"dir":     d.opts.Dir,
	}).Info("starting download")

	err = pipe.Run()
	if bar != nil {
		bar.Finish()
	}

	return snapshot(), err
}

// Check verifies the local files of entries concurrently and returns the
// entries that still have to be downloaded, in manifest order.
func (d *Downloader) Check(ctx context.Context, entries []manifest.Entry) ([]manifest.Entry, error) {
	pipe, err := pipeline.New(ctx, logger.PipelineLogger(logging.FromContext(ctx)))
	if err != nil {
		return nil, err
	}

	verified, err := d.addVerify(pipe, entries)
	if err != nil {
		return nil, err
	}

	missing := make(map[string]struct{})
	err = pipeline.AddSink(pipe, "pending", verified, func(_ context.Context, fs fileState) error {
		if !fs.verified {
			missing[fs.entry.ID.String()] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	err = pipe.Run()
	if err != nil {
		return nil, err
	}

	pending := []manifest.Entry{}
	for _, entry := range entries {
		if _, ok := missing[entry.ID.String()]; ok {
			pending = append(pending, entry)
		}
	}

	return pending, nil
}

// retryable reports whether another attempt may succeed. Content that does
// not match the manifest and local filesystem errors fail at once; the next
// run fetches the file again.
func retryable(err error) bool {
	httpErr := &gdc.HTTPError{}
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}

	pathErr := &fs.PathError{}
	switch {
	case errors.Is(err, ErrChecksum), errors.Is(err, ErrSizeMismatch):
		return false
	case errors.As(err, &pathErr):
		return false
	}

	return true
}

func (d *Downloader) fetch(ctx context.Context, entry manifest.Entry) Result {
	log := logging.FromContext(ctx).WithField("file", entry.Filename)
	backoff := d.opts.RetryBackoff

	for attempt := 1; ; attempt++ {
		n, err := d.fetchOnce(ctx, entry)
		if err == nil {
			log.WithField("bytes", n).Debug("file downloaded")

			return Result{Entry: entry, Status: StatusCompleted, Bytes: n, Attempts: attempt}
		}

		failed := Result{Entry: entry, Status: StatusFailed, Attempts: attempt, Err: err}
		if ctx.Err() != nil || attempt > d.opts.Retries || !retryable(err) {
			return failed
		}

		log.WithError(err).WithField("attempt", attempt).Warn("retrying download")
		select {
		case <-ctx.Done():
			return failed
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// fetchOnce streams the file into a hidden part file, checks it and renames
// it into place. On failure neither the part file nor the destination remain.
func (d *Downloader) fetchOnce(ctx context.Context, entry manifest.Entry) (int64, error) {
	dest := d.path(entry)
	part := filepath.Join(d.opts.Dir, "."+entry.Filename+".part")

	n, err := d.writePart(ctx, entry, part)
	if err == nil {
		err = os.Rename(part, dest)
		if err != nil {
			err = errors.Wrapf(err, "unable to move %s into place", entry.Filename)
		}
	}
	if err != nil {
		_ = os.Remove(part)
		_ = os.Remove(dest)

		return n, err
	}

	return n, nil
}

func (d *Downloader) writePart(ctx context.Context, entry manifest.Entry, part string) (int64, error) {
	file, err := os.Create(part)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to create %s", part)
	}
	defer file.Close()

	hasher := md5.New() //nolint:gosec
	n, err := d.fetcher.Download(ctx, entry.ID.String(), io.MultiWriter(file, hasher))
	if err != nil {
		return n, err
	}

	err = file.Close()
	if err != nil {
		return n, errors.Wrapf(err, "unable to close %s", part)
	}

	if n != entry.Size {
		return n, errors.Wrapf(ErrSizeMismatch, "expected %d bytes, got %d", entry.Size, n)
	}
	if digest := hex.EncodeToString(hasher.Sum(nil)); digest != entry.MD5 {
		return n, errors.Wrapf(ErrChecksum, "expected %s, got %s", entry.MD5, digest)
	}

	return n, nil
}
