package download_test

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/internal/download"
	"github.com/askiada/gdcpq/internal/gdc"
	"github.com/askiada/gdcpq/internal/manifest"
)

type fakeGDC struct {
	mu       sync.Mutex
	files    map[string]string
	failures map[string][]int
	calls    map[string]int
}

func newFakeGDC(t *testing.T) (*fakeGDC, *gdc.Client) {
	t.Helper()

	fake := &fakeGDC{
		files:    make(map[string]string),
		failures: make(map[string][]int),
		calls:    make(map[string]int),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/data/")

		fake.mu.Lock()
		fake.calls[id]++
		content, ok := fake.files[id]
		var code int
		if queue := fake.failures[id]; len(queue) > 0 {
			code, fake.failures[id] = queue[0], queue[1:]
		}
		fake.mu.Unlock()

		switch {
		case code != 0:
			w.WriteHeader(code)
		case !ok:
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(content))
		}
	}))
	t.Cleanup(srv.Close)

	return fake, gdc.NewClient(gdc.WithBaseURL(srv.URL))
}

func (f *fakeGDC) add(filename, content string) manifest.Entry {
	entry := newEntry(filename, content)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[entry.ID.String()] = content

	return entry
}

func (f *fakeGDC) callCount(entry manifest.Entry) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[entry.ID.String()]
}

func newEntry(filename, content string) manifest.Entry {
	sum := md5.Sum([]byte(content)) //nolint:gosec

	return manifest.Entry{
		ID:       uuid.New(),
		Filename: filename,
		MD5:      hex.EncodeToString(sum[:]),
		Size:     int64(len(content)),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(content)
}

func assertNoPartFiles(t *testing.T, dir string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".*.part"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRun(t *testing.T) {
	t.Parallel()

	fake, client := newFakeGDC(t)
	entries := []manifest.Entry{
		fake.add("a.tsv", "gene_id\ttpm_unstranded\nENSG1\t1.5\n"),
		fake.add("b.tsv", strings.Repeat("x", 20000)),
		fake.add("c.tsv", ""),
	}

	dir := filepath.Join(t.TempDir(), "downloads")
	progress := &bytes.Buffer{}
	dl, err := download.New(client, download.Options{Dir: dir, Workers: 2, ChunkSize: 128, Progress: progress})
	require.NoError(t, err)

	summary, err := dl.Run(t.Context(), entries)
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, int64(20000+len("gene_id\ttpm_unstranded\nENSG1\t1.5\n")), summary.Bytes)
	assert.Equal(t, "gene_id\ttpm_unstranded\nENSG1\t1.5\n", readFile(t, filepath.Join(dir, "a.tsv")))
	assert.Len(t, readFile(t, filepath.Join(dir, "b.tsv")), 20000)
	assert.NotEmpty(t, progress.String())
	assertNoPartFiles(t, dir)

	// a second run only verifies
	summary, err = dl.Run(t.Context(), entries)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 0, summary.Completed)
	for _, entry := range entries {
		assert.Equal(t, 1, fake.callCount(entry))
	}
}

func TestRunRefetchCorrupted(t *testing.T) {
	t.Parallel()

	fake, client := newFakeGDC(t)
	good := fake.add("good.tsv", "good content")
	corrupted := fake.add("corrupted.tsv", "expected content")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.tsv"), []byte("good content"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupted.tsv"), []byte("expected contenT"), 0o600))

	dl, err := download.New(client, download.Options{Dir: dir})
	require.NoError(t, err)

	summary, err := dl.Run(t.Context(), []manifest.Entry{good, corrupted})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 0, fake.callCount(good))
	assert.Equal(t, "expected content", readFile(t, filepath.Join(dir, "corrupted.tsv")))
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	fake, client := newFakeGDC(t)
	ok := fake.add("ok.tsv", "fine")
	notFound := newEntry("missing.tsv", "never served")
	badChecksum := fake.add("bad.tsv", "served content")
	badChecksum.MD5 = strings.Repeat("0", 32)
	badSize := fake.add("short.tsv", "short")
	badSize.Size++

	dir := t.TempDir()
	dl, err := download.New(client, download.Options{Dir: dir, Workers: 3, Retries: 1})
	require.NoError(t, err)

	summary, err := dl.Run(t.Context(), []manifest.Entry{ok, notFound, badChecksum, badSize})
	require.NoError(t, err)
	require.ErrorIs(t, summary.Err(), download.ErrIncomplete)

	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 3, summary.Failed)
	require.Len(t, summary.Failures, 3)
	// content that does not match the manifest is not fetched twice in a run
	assert.Equal(t, "bad.tsv", summary.Failures[0].Filename)
	assert.Equal(t, 1, summary.Failures[0].Attempts)
	assert.Contains(t, summary.Failures[0].Error, "md5 verification failed")
	assert.Equal(t, 1, fake.callCount(badChecksum))
	assert.Equal(t, "missing.tsv", summary.Failures[1].Filename)
	assert.Equal(t, 1, summary.Failures[1].Attempts)
	assert.Contains(t, summary.Failures[1].Error, "404")
	assert.Equal(t, "short.tsv", summary.Failures[2].Filename)
	assert.Equal(t, 1, summary.Failures[2].Attempts)
	assert.Contains(t, summary.Failures[2].Error, "size mismatch")
	assert.Equal(t, 1, fake.callCount(badSize))

	assert.NoFileExists(t, filepath.Join(dir, "bad.tsv"))
	assert.NoFileExists(t, filepath.Join(dir, "missing.tsv"))
	assert.NoFileExists(t, filepath.Join(dir, "short.tsv"))
	assertNoPartFiles(t, dir)
}

func TestRunRetryTemporary(t *testing.T) {
	t.Parallel()

	fake, client := newFakeGDC(t)
	entry := fake.add("flaky.tsv", "eventually")
	fake.failures[entry.ID.String()] = []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}

	dir := t.TempDir()
	dl, err := download.New(client, download.Options{Dir: dir, Retries: 2})
	require.NoError(t, err)

	summary, err := dl.Run(t.Context(), []manifest.Entry{entry})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 3, fake.callCount(entry))
	assert.Equal(t, "eventually", readFile(t, filepath.Join(dir, "flaky.tsv")))
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	fake, client := newFakeGDC(t)
	entries := []manifest.Entry{fake.add("a.tsv", "a"), fake.add("b.tsv", "b")}

	dl, err := download.New(client, download.Options{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	summary, err := dl.Run(ctx, entries)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Completed)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := newEntry("present.tsv", "here")
	absent := newEntry("absent.tsv", "gone")
	truncated := newEntry("truncated.tsv", "full content")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.tsv"), []byte("here"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "truncated.tsv"), []byte("full"), 0o600))

	entries := []manifest.Entry{present, absent, truncated}

	dl, err := download.New(nil, download.Options{Dir: dir, Workers: 2})
	require.NoError(t, err)

	pending, err := dl.Check(t.Context(), entries)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Entry{absent, truncated}, pending)

	pending, err = download.Pending(dir, entries)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Entry{absent, truncated}, pending)
}
