// Package domain contains pure, dependency-free domain models and types
// for grouped outlier rejection.
package domain

import (
	"fmt"
	"slices"
)

// MillerIndex is the raw, unreduced index of an observation. A Grouper maps it
// to the GroupKey shared by all symmetry-equivalent observations.
type MillerIndex [3]int

// String formats the index as "h,k,l".
func (m MillerIndex) String() string { return fmt.Sprintf("%d,%d,%d", m[0], m[1], m[2]) }

// GroupKey identifies a group of repeated measurements of one quantity.
type GroupKey string

// Flag is a per-observation bitmask.
type Flag uint32

// Observation flags.
const (
	// FlagOutlier marks an observation rejected as an outlier in scaling.
	FlagOutlier Flag = 1 << iota

	// FlagExcluded marks an observation that must not take part in estimation,
	// for example because it was judged bad for scaling upstream.
	FlagExcluded
)

// Names of the float64 columns exposed by Table.
const (
	ColumnValue        = "value"
	ColumnVariance     = "variance"
	ColumnInverseScale = "inverse_scale_factor"
)

// Observation is a single measured quantity.
type Observation struct {
	// Index is the raw index used to derive the group key.
	Index MillerIndex `json:"index"`

	// Value is the measured quantity (for example an intensity).
	Value float64 `json:"value"`

	// Variance is the squared uncertainty of Value.
	Variance float64 `json:"variance"`

	// InverseScale is the multiplicative correction applied before comparing
	// Value with a group estimate.
	InverseScale float64 `json:"inverse_scale_factor"`

	// DatasetID identifies the dataset the observation came from.
	DatasetID int `json:"dataset_id"`

	// Flags holds the observation's flag bits.
	Flags Flag `json:"flags,omitempty"`
}

// Weight returns the statistical weight 1/variance, or zero when the
// observation must not contribute to estimation.
func (o Observation) Weight() float64 {
	if o.Variance <= 0 || o.Flags&FlagExcluded != 0 {
		return 0
	}
	return 1 / o.Variance
}

// Table is a column-oriented, in-memory observation set. The zero value is an
// empty table ready for Append.
//
// Table is not safe for concurrent mutation; callers running rejection on the
// same table from several goroutines must serialise those calls.
type Table struct {
	index     []MillerIndex
	value     []float64
	variance  []float64
	invScale  []float64
	datasetID []int
	flags     []Flag
}

// NewTable creates a table holding the given observations in order.
func NewTable(observations ...Observation) *Table {
	t := &Table{}
	for _, o := range observations {
		t.Append(o)
	}
	return t
}

// Append adds an observation to the end of the table.
func (t *Table) Append(o Observation) {
	t.index = append(t.index, o.Index)
	t.value = append(t.value, o.Value)
	t.variance = append(t.variance, o.Variance)
	t.invScale = append(t.invScale, o.InverseScale)
	t.datasetID = append(t.datasetID, o.DatasetID)
	t.flags = append(t.flags, o.Flags)
}

// Len returns the number of observations.
func (t *Table) Len() int { return len(t.value) }

// At returns the observation stored at row i.
func (t *Table) At(i int) Observation {
	return Observation{
		Index:        t.index[i],
		Value:        t.value[i],
		Variance:     t.variance[i],
		InverseScale: t.invScale[i],
		DatasetID:    t.datasetID[i],
		Flags:        t.flags[i],
	}
}

// Observations returns a copy of every row.
func (t *Table) Observations() []Observation {
	out := make([]Observation, t.Len())
	for i := range out {
		out[i] = t.At(i)
	}
	return out
}

// Index returns the raw index of row i.
func (t *Table) Index(i int) MillerIndex { return t.index[i] }

// Float64Column returns a copy of the named float column.
func (t *Table) Float64Column(name string) ([]float64, error) {
	col, err := t.column(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(*col), nil
}

// SetFloat64Column replaces the named float column. The length of values must
// match the table.
func (t *Table) SetFloat64Column(name string, values []float64) error {
	col, err := t.column(name)
	if err != nil {
		return err
	}
	if len(values) != t.Len() {
		return fmt.Errorf("%w: column %s has %d values, table has %d rows",
			ErrLengthMismatch, name, len(values), t.Len())
	}
	*col = slices.Clone(values)
	return nil
}

func (t *Table) column(name string) (*[]float64, error) {
	switch name {
	case ColumnValue:
		return &t.value, nil
	case ColumnVariance:
		return &t.variance, nil
	case ColumnInverseScale:
		return &t.invScale, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
}

// DatasetIDs returns the distinct dataset identifiers in ascending order.
func (t *Table) DatasetIDs() []int {
	ids := slices.Clone(t.datasetID)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// HasFlag reports whether row i carries flag.
func (t *Table) HasFlag(i int, flag Flag) bool { return t.flags[i]&flag != 0 }

// Flags returns a mask with one entry per row, true where flag is set.
func (t *Table) Flags(flag Flag) []bool {
	mask := make([]bool, t.Len())
	for i, f := range t.flags {
		mask[i] = f&flag != 0
	}
	return mask
}

// CountFlagged returns the number of rows carrying flag.
func (t *Table) CountFlagged(flag Flag) int {
	n := 0
	for _, f := range t.flags {
		if f&flag != 0 {
			n++
		}
	}
	return n
}

// SetFlags sets flag on every row where mask is true.
func (t *Table) SetFlags(mask []bool, flag Flag) error {
	if len(mask) != t.Len() {
		return fmt.Errorf("%w: mask has %d entries, table has %d rows", ErrLengthMismatch, len(mask), t.Len())
	}
	for i, set := range mask {
		if set {
			t.flags[i] |= flag
		}
	}
	return nil
}

// UnsetFlags clears flag on every row where mask is true.
func (t *Table) UnsetFlags(mask []bool, flag Flag) error {
	if len(mask) != t.Len() {
		return fmt.Errorf("%w: mask has %d entries, table has %d rows", ErrLengthMismatch, len(mask), t.Len())
	}
	for i, unset := range mask {
		if unset {
			t.flags[i] &^= flag
		}
	}
	return nil
}

// Select returns a new table holding the rows where mask is true.
func (t *Table) Select(mask []bool) (*Table, error) {
	if len(mask) != t.Len() {
		return nil, fmt.Errorf("%w: mask has %d entries, table has %d rows", ErrLengthMismatch, len(mask), t.Len())
	}
	out := &Table{}
	for i, keep := range mask {
		if keep {
			out.Append(t.At(i))
		}
	}
	return out, nil
}

// SelectIndices returns a new table holding the given rows in the given order.
func (t *Table) SelectIndices(indices []int) (*Table, error) {
	out := &Table{}
	for _, i := range indices {
		if i < 0 || i >= t.Len() {
			return nil, fmt.Errorf("%w: %d (table has %d rows)", ErrIndexOutOfRange, i, t.Len())
		}
		out.Append(t.At(i))
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return &Table{
		index:     slices.Clone(t.index),
		value:     slices.Clone(t.value),
		variance:  slices.Clone(t.variance),
		invScale:  slices.Clone(t.invScale),
		datasetID: slices.Clone(t.datasetID),
		flags:     slices.Clone(t.flags),
	}
}
