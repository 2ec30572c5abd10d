// Package dataset reads and writes observation sets as JSON files, the
// exchange format of the command-line tools.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-normdev/internal/domain"
)

// ErrSizeMismatch is returned when the metadata size disagrees with the
// number of records.
var ErrSizeMismatch = errors.New("metadata size does not match record count")

// Dataset is a serialisable observation set.
type Dataset struct {
	// Metadata describes where the observations came from.
	Metadata Metadata `json:"metadata"`

	// Records holds one entry per observation, in table order.
	Records []Record `json:"observations" validate:"dive"`
}

// Metadata provides information about the dataset itself.
type Metadata struct {
	// Name identifies the dataset.
	Name string `json:"name" validate:"required,max=255"`

	// Source indicates where the observations originated.
	Source string `json:"source,omitempty"`

	// Description provides details about the dataset contents.
	Description string `json:"description,omitempty" validate:"max=4000"`

	// Seed is the generator seed for synthetic datasets.
	Seed int64 `json:"seed,omitempty"`

	// Size is the number of observations.
	Size int `json:"observation_count" validate:"min=0"`
}

// Record is the file representation of one observation.
type Record struct {
	H            int     `json:"h"`
	K            int     `json:"k"`
	L            int     `json:"l"`
	Value        float64 `json:"value"`
	Variance     float64 `json:"variance"`
	InverseScale float64 `json:"inverse_scale_factor"`
	DatasetID    int     `json:"dataset_id" validate:"min=0"`
	Outlier      bool    `json:"outlier,omitempty"`
	Excluded     bool    `json:"excluded,omitempty"`
}

var validate = validator.New()

// Validate checks struct constraints and that the metadata size matches.
func (d *Dataset) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("dataset validation failed: %w", err)
	}
	if d.Metadata.Size != len(d.Records) {
		return fmt.Errorf("%w: metadata %d, records %d", ErrSizeMismatch, d.Metadata.Size, len(d.Records))
	}
	return nil
}

// Table converts the records to an observation table.
func (d *Dataset) Table() *domain.Table {
	t := domain.NewTable()
	for _, r := range d.Records {
		var flags domain.Flag
		if r.Outlier {
			flags |= domain.FlagOutlier
		}
		if r.Excluded {
			flags |= domain.FlagExcluded
		}
		t.Append(domain.Observation{
			Index:        domain.MillerIndex{r.H, r.K, r.L},
			Value:        r.Value,
			Variance:     r.Variance,
			InverseScale: r.InverseScale,
			DatasetID:    r.DatasetID,
			Flags:        flags,
		})
	}
	return t
}

// FromTable captures the current state of t, flags included.
func FromTable(meta Metadata, t *domain.Table) *Dataset {
	records := make([]Record, t.Len())
	for i := range records {
		o := t.At(i)
		records[i] = Record{
			H:            o.Index[0],
			K:            o.Index[1],
			L:            o.Index[2],
			Value:        o.Value,
			Variance:     o.Variance,
			InverseScale: o.InverseScale,
			DatasetID:    o.DatasetID,
			Outlier:      o.Flags&domain.FlagOutlier != 0,
			Excluded:     o.Flags&domain.FlagExcluded != 0,
		}
	}
	meta.Size = len(records)
	return &Dataset{Metadata: meta, Records: records}
}

// Load reads and validates a dataset from a JSON file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes and validates a dataset from r.
func Read(r io.Reader) (*Dataset, error) {
	var d Dataset
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes d to path as indented JSON, creating parent directories.
func Save(d *Dataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	if err := Write(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write encodes d to w as indented JSON.
func Write(w io.Writer, d *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	return nil
}
