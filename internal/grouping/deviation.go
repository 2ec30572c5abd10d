package grouping

import (
	"errors"
	"fmt"
	"math"
)

// Mode selects how the consistency estimate for an observation is formed.
type Mode int

const (
	// IncludeSelf estimates from every member of the group, including the
	// observation under test.
	IncludeSelf Mode = iota

	// LeaveOneOut estimates from the other members of the group only.
	LeaveOneOut

	// AgainstReference estimates from an external reference, ignoring the group.
	AgainstReference
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case IncludeSelf:
		return "include_self"
	case LeaveOneOut:
		return "leave_one_out"
	case AgainstReference:
		return "against_reference"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MinLeaveOneOutGroupSize is the smallest group examined by leave-one-out
// estimation. Removing one member of a pair leaves a single point that is
// trivially consistent with itself.
const MinLeaveOneOutGroupSize = 3

var (
	// ErrNilReference is returned when AgainstReference is requested without a reference.
	ErrNilReference = errors.New("reference required for against_reference mode")

	// ErrUnknownMode is returned for an unsupported Mode value.
	ErrUnknownMode = errors.New("unknown estimation mode")
)

// Scores holds normalised deviations for the eligible rows of a table.
type Scores struct {
	// Eligible has one entry per table row.
	Eligible []bool

	// Z holds |d| for each eligible row, in table order.
	Z []float64
}

// EligibleCount returns the number of rows that received a score.
func (s Scores) EligibleCount() int { return len(s.Z) }

// Positions returns the table positions of the eligible rows, aligned with Z.
func (s Scores) Positions() []int {
	out := make([]int, 0, len(s.Z))
	for pos, ok := range s.Eligible {
		if ok {
			out = append(out, pos)
		}
	}
	return out
}

// Dense expands Z to one entry per table row, with zero for ineligible rows.
func (s Scores) Dense() []float64 {
	out := make([]float64, len(s.Eligible))
	k := 0
	for pos, ok := range s.Eligible {
		if ok {
			out[pos] = s.Z[k]
			k++
		}
	}
	return out
}

// Estimate computes the normalised deviation of every eligible row of t.
//
// For row i with value v, weight w and inverse scale s, the deviation is
//
//	d = (v - s·ĝ) / sqrt(σ²)
//
// where, for the group modes, ĝ = Σwsv/Σws² over the chosen members and
// σ² = 1/w + (s/Σws²)², and for AgainstReference ĝ is the reference value and
// σ² = 1/w + s²·var_ref. The score is |d|.
//
// Rows are ineligible when their estimate is undefined: LeaveOneOut groups
// smaller than MinLeaveOneOutGroupSize, a zero Σws², or a reference miss.
func Estimate(t *Table, mode Mode, ref *Reference) (Scores, error) {
	switch mode {
	case IncludeSelf, LeaveOneOut:
	case AgainstReference:
		if ref == nil {
			return Scores{}, ErrNilReference
		}
	default:
		return Scores{}, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	scores := Scores{
		Eligible: make([]bool, t.Len()),
		Z:        make([]float64, 0, t.Len()),
	}

	for pos := range t.Len() {
		v, w, s := t.value[pos], t.weight[pos], t.scale[pos]

		var estimate, variance float64
		switch mode {
		case IncludeSelf, LeaveOneOut:
			if mode == LeaveOneOut && t.GroupSize(pos) < MinLeaveOneOutGroupSize {
				continue
			}
			sumWSV, sumWS2 := t.Sums(pos, mode == LeaveOneOut)
			if !(sumWS2 > 0) {
				continue
			}
			estimate = sumWSV / sumWS2
			variance = 1/w + (s/sumWS2)*(s/sumWS2)
		case AgainstReference:
			entry, ok := ref.Lookup(t.keys[pos])
			if !ok {
				continue
			}
			estimate = entry.Value
			variance = 1/w + s*s*entry.Variance
		}

		scores.Eligible[pos] = true
		scores.Z = append(scores.Z, math.Abs((v-s*estimate)/math.Sqrt(variance)))
	}

	return scores, nil
}
