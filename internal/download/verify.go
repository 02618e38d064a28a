package download

import (
	"crypto/md5" //nolint:gosec // GDC publishes md5 checksums
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/gdcpq/internal/manifest"
)

// Verify reports whether the file at path has the expected size and md5
// digest. A missing file is not an error. The size is checked first so that
// truncated files are not hashed.
func Verify(path, expectedMD5 string, expectedSize int64) (bool, error) {
	return verify(path, expectedMD5, expectedSize, defaultChunkSize)
}

func verify(path, expectedMD5 string, expectedSize int64, chunkSize int) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "unable to stat %s", path)
	}
	if !info.Mode().IsRegular() || info.Size() != expectedSize {
		return false, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	hasher := md5.New() //nolint:gosec
	_, err = io.CopyBuffer(hasher, file, make([]byte, chunkSize))
	if err != nil {
		return false, errors.Wrapf(err, "unable to hash %s", path)
	}

	return hex.EncodeToString(hasher.Sum(nil)) == strings.ToLower(expectedMD5), nil
}

// Pending returns the entries whose file in dir is missing or does not verify.
func Pending(dir string, entries []manifest.Entry) ([]manifest.Entry, error) {
	pending := []manifest.Entry{}
	for _, entry := range entries {
		ok, err := Verify(filepath.Join(dir, entry.Filename), entry.MD5, entry.Size)
		if err != nil {
			return nil, err
		}
		if !ok {
			pending = append(pending, entry)
		}
	}

	return pending, nil
}
