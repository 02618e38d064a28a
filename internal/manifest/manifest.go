// Package manifest reads GDC download manifests.
//
// A manifest is a tab separated file with a header line. The id, filename,
// md5 and size columns are required, in any order; state is optional.
package manifest

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidEntry  = errors.New("invalid manifest entry")
	ErrDuplicateID   = errors.New("duplicate file id")
)

const (
	ColumnID       = "id"
	ColumnFilename = "filename"
	ColumnMD5      = "md5"
	ColumnSize     = "size"
	ColumnState    = "state"
)

var requiredColumns = []string{ColumnID, ColumnFilename, ColumnMD5, ColumnSize}

// Entry is one file of the manifest.
type Entry struct {
	ID       uuid.UUID
	Filename string
	MD5      string
	Size     int64
	State    string
}

// Load parses the manifest at path.
func Load(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open manifest %s", path)
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse manifest %s", path)
	}

	return entries, nil
}

// Parse reads a manifest from r. Blank lines are ignored.
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.Wrap(ErrMissingColumn, "empty manifest")
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read header")
	}

	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	seen := make(map[uuid.UUID]int)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "unable to read record")
		}
		line, _ := reader.FieldPos(0)

		entry, err := parseRecord(record, columns)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		if prev, ok := seen[entry.ID]; ok {
			return nil, errors.Wrapf(ErrDuplicateID, "line %d: %s already listed on line %d", line, entry.ID, prev)
		}
		seen[entry.ID] = line

		entries = append(entries, entry)
	}

	return entries, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[name] = i
	}

	missing := []string{}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrap(ErrMissingColumn, strings.Join(missing, ", "))
	}

	return columns, nil
}

func field(record []string, columns map[string]int, name string) (string, bool) {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return "", false
	}

	return strings.TrimSpace(record[idx]), true
}

func parseRecord(record []string, columns map[string]int) (Entry, error) {
	values := make(map[string]string, len(requiredColumns))
	for _, name := range requiredColumns {
		value, ok := field(record, columns, name)
		if !ok || value == "" {
			return Entry{}, errors.Wrapf(ErrInvalidEntry, "empty %s", name)
		}
		values[name] = value
	}

	id, err := uuid.Parse(values[ColumnID])
	if err != nil {
		return Entry{}, errors.Wrapf(ErrInvalidEntry, "id %q: %s", values[ColumnID], err)
	}

	filename := values[ColumnFilename]
	if filename == "." || filename == ".." || filepath.Base(filename) != filename || strings.ContainsAny(filename, `/\`) {
		return Entry{}, errors.Wrapf(ErrInvalidEntry, "filename %q is not a plain file name", filename)
	}

	md5 := strings.ToLower(values[ColumnMD5])
	if decoded, err := hex.DecodeString(md5); err != nil || len(decoded) != 16 {
		return Entry{}, errors.Wrapf(ErrInvalidEntry, "md5 %q is not 32 hex characters", values[ColumnMD5])
	}

	size, err := strconv.ParseInt(values[ColumnSize], 10, 64)
	if err != nil || size < 0 {
		return Entry{}, errors.Wrapf(ErrInvalidEntry, "size %q is not a non-negative integer", values[ColumnSize])
	}

	state, _ := field(record, columns, ColumnState)

	return Entry{
		ID:       id,
		Filename: filename,
		MD5:      md5,
		Size:     size,
		State:    state,
	}, nil
}

// TotalSize returns the sum of the entry sizes.
func TotalSize(entries []Entry) int64 {
	var total int64
	for _, entry := range entries {
		total += entry.Size
	}

	return total
}
