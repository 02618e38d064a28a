// Package metadata reads the GDC metadata JSON exported with a cart.
package metadata

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRecord = errors.New("invalid metadata record")
	ErrDuplicateFile = errors.New("duplicate file name")
	ErrUnknownField  = errors.New("unknown label field")
)

// Label fields usable with Sample.Label.
const (
	FieldSampleType = "sample_type"
	FieldTissueType = "tissue_type"
	FieldProjectID  = "project_id"
	FieldCaseID     = "case_id"
)

type entity struct {
	SubmitterID string `json:"entity_submitter_id"`
	Type        string `json:"entity_type"`
	ID          string `json:"entity_id"`
	CaseID      string `json:"case_id"`
}

type caseRecord struct {
	CaseID      string `json:"case_id"`
	SubmitterID string `json:"submitter_id"`
	Project     struct {
		ProjectID string `json:"project_id"`
	} `json:"project"`
	Samples []struct {
		SampleType string `json:"sample_type"`
		TissueType string `json:"tissue_type"`
	} `json:"samples"`
}

type record struct {
	FileID             string       `json:"file_id"`
	FileName           string       `json:"file_name"`
	MD5                string       `json:"md5sum"`
	FileSize           int64        `json:"file_size"`
	DataType           string       `json:"data_type"`
	AssociatedEntities []entity     `json:"associated_entities"`
	Cases              []caseRecord `json:"cases"`
}

// Sample describes the sample a downloaded file belongs to.
type Sample struct {
	FileName   string
	FileID     string
	SampleID   string
	CaseID     string
	ProjectID  string
	SampleType string
	TissueType string
}

// Label returns the value of field, one of the Field constants.
func (s Sample) Label(field string) (string, error) {
	switch field {
	case FieldSampleType:
		return s.SampleType, nil
	case FieldTissueType:
		return s.TissueType, nil
	case FieldProjectID:
		return s.ProjectID, nil
	case FieldCaseID:
		return s.CaseID, nil
	default:
		return "", errors.Wrap(ErrUnknownField, field)
	}
}

func (r record) sample() Sample {
	s := Sample{
		FileName: r.FileName,
		FileID:   r.FileID,
		SampleID: r.FileID,
	}

	if len(r.AssociatedEntities) > 0 {
		e := r.AssociatedEntities[0]
		if e.SubmitterID != "" {
			s.SampleID = e.SubmitterID
		}
		s.CaseID = e.CaseID
	}

	if len(r.Cases) > 0 {
		c := r.Cases[0]
		if c.CaseID != "" {
			s.CaseID = c.CaseID
		}
		s.ProjectID = c.Project.ProjectID
		if len(c.Samples) > 0 {
			s.SampleType = c.Samples[0].SampleType
			s.TissueType = c.Samples[0].TissueType
		}
	}

	return s
}

// Parse decodes a JSON array of GDC file records. Each file name may appear
// only once.
func Parse(r io.Reader) ([]Sample, error) {
	records := []record{}
	err := json.NewDecoder(r).Decode(&records)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode metadata")
	}

	samples := make([]Sample, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.FileName == "" {
			return nil, errors.Wrapf(ErrInvalidRecord, "record %d has no file_name", i)
		}
		if first, ok := seen[rec.FileName]; ok {
			return nil, errors.Wrapf(ErrDuplicateFile, "%s in records %d and %d", rec.FileName, first, i)
		}
		seen[rec.FileName] = i
		samples = append(samples, rec.sample())
	}

	return samples, nil
}

func Load(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open metadata %s", path)
	}
	defer file.Close()

	samples, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse metadata %s", path)
	}

	return samples, nil
}

// Index maps the samples by file name.
func Index(samples []Sample) (map[string]Sample, error) {
	idx := make(map[string]Sample, len(samples))
	for _, s := range samples {
		if _, ok := idx[s.FileName]; ok {
			return nil, errors.Wrap(ErrDuplicateFile, s.FileName)
		}
		idx[s.FileName] = s
	}

	return idx, nil
}
