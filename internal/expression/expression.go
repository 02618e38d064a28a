// Package expression reads GDC STAR gene counts files.
//
// The files are tab separated. Lines starting with # are comments, the first
// other line is the header. Rows of the STAR summary counters (gene ids
// starting with N_) are dropped.
package expression

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	GeneIDColumn = "gene_id"
	// DefaultValueColumn is the column read when none is given.
	DefaultValueColumn = "tpm_unstranded"

	summaryPrefix = "N_"
	maxLineSize   = 1 << 20
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrMalformedRow  = errors.New("malformed row")
	ErrDuplicateGene = errors.New("duplicate gene id")
)

// Profile holds one value per gene, in file order. Empty values are NaN.
type Profile struct {
	Genes  []string
	Values []float64
}

// Len returns the number of genes.
func (p *Profile) Len() int {
	return len(p.Genes)
}

// ReadFile reads the column of the file at path.
func ReadFile(path, column string) (*Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	profile, err := Read(file, column)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	return profile, nil
}

// Read reads the gene ids and the values of column from r.
func Read(r io.Reader, column string) (*Profile, error) {
	if column == "" {
		column = DefaultValueColumn
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		lineNo   int
		nFields  int
		geneIdx  = -1
		valueIdx = -1
	)
	profile := &Profile{}
	seen := make(map[string]struct{})

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if nFields == 0 {
			nFields = len(fields)
			for i, name := range fields {
				switch strings.TrimSpace(name) {
				case GeneIDColumn:
					geneIdx = i
				case column:
					valueIdx = i
				}
			}
			if geneIdx < 0 {
				return nil, errors.Wrapf(ErrMissingColumn, "line %d: %s", lineNo, GeneIDColumn)
			}
			if valueIdx < 0 {
				return nil, errors.Wrapf(ErrMissingColumn, "line %d: %s", lineNo, column)
			}

			continue
		}

		if len(fields) != nFields {
			return nil, errors.Wrapf(ErrMalformedRow, "line %d: expected %d fields, got %d", lineNo, nFields, len(fields))
		}

		gene := strings.TrimSpace(fields[geneIdx])
		if gene == "" {
			return nil, errors.Wrapf(ErrMalformedRow, "line %d: empty %s", lineNo, GeneIDColumn)
		}
		if strings.HasPrefix(gene, summaryPrefix) {
			continue
		}
		if _, ok := seen[gene]; ok {
			return nil, errors.Wrapf(ErrDuplicateGene, "line %d: %s", lineNo, gene)
		}
		seen[gene] = struct{}{}

		value, err := parseValue(fields[valueIdx])
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRow, "line %d: %s", lineNo, err)
		}

		profile.Genes = append(profile.Genes, gene)
		profile.Values = append(profile.Values, value)
	}

	err := scanner.Err()
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan")
	}
	if nFields == 0 {
		return nil, errors.Wrap(ErrMissingColumn, "no header")
	}

	return profile, nil
}

func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN(), nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid value %q", raw)
	}

	return value, nil
}
