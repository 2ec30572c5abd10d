// Package grouping builds the per-round grouped view of an observation set and
// computes normalised deviations against group-consistent estimates.
//
// A Table is derived from the nonzero-weight observations of a set: it holds
// parallel value, weight and inverse-scale arrays plus a group-membership
// relation from group key to member positions. Tables are immutable once
// built and are cheap enough to rebuild for every estimation round.
package grouping

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/ports"
)

// Row is one observation entering a Table.
type Row struct {
	// Origin is the index of the observation in the set it came from.
	Origin int

	// Key is the observation's group key.
	Key domain.GroupKey

	// Value is the measured quantity.
	Value float64

	// Variance is the squared uncertainty of Value. It must be positive.
	Variance float64

	// InverseScale is the multiplicative correction of Value.
	InverseScale float64
}

// Group is the set of table positions sharing a key, in insertion order.
type Group struct {
	Key     domain.GroupKey
	Members []int
}

// Table is the grouped aggregation view used by the estimator.
type Table struct {
	origin []int
	keys   []domain.GroupKey
	value  []float64
	weight []float64
	scale  []float64

	// wsv and ws2 hold w·s·v and w·s² per row.
	wsv []float64
	ws2 []float64

	groupOf []int
	groups  []Group

	// Per-group Σ w·s·v and Σ w·s².
	sumWSV []float64
	sumWS2 []float64
}

// Build groups the nonzero-weight observations of set. When subset is
// non-nil only those rows are considered, in the given order; members of a
// group are then grouped only with other members of the subset.
func Build(set ports.ObservationSet, grouper ports.Grouper, subset []int) (*Table, error) {
	if set == nil {
		return nil, domain.ErrNilObservations
	}
	if grouper == nil {
		return nil, domain.ErrNilGrouper
	}

	n := set.Len()
	if subset != nil {
		n = len(subset)
	}

	rows := make([]Row, 0, n)
	add := func(i int) error {
		if i < 0 || i >= set.Len() {
			return fmt.Errorf("%w: %d (set has %d rows)", domain.ErrIndexOutOfRange, i, set.Len())
		}
		obs := set.At(i)
		if obs.Weight() == 0 {
			return nil
		}
		rows = append(rows, Row{
			Origin:       i,
			Key:          grouper.Key(obs.Index),
			Value:        obs.Value,
			Variance:     obs.Variance,
			InverseScale: obs.InverseScale,
		})
		return nil
	}

	if subset == nil {
		for i := range set.Len() {
			if err := add(i); err != nil {
				return nil, err
			}
		}
	} else {
		for _, i := range subset {
			if err := add(i); err != nil {
				return nil, err
			}
		}
	}

	return BuildRows(rows)
}

// BuildRows builds a table directly from rows. It fails with
// domain.ErrNonPositiveVariance if any row has a variance of zero or less.
func BuildRows(rows []Row) (*Table, error) {
	n := len(rows)
	t := &Table{
		origin:  make([]int, n),
		keys:    make([]domain.GroupKey, n),
		value:   make([]float64, n),
		weight:  make([]float64, n),
		scale:   make([]float64, n),
		wsv:     make([]float64, n),
		ws2:     make([]float64, n),
		groupOf: make([]int, n),
	}

	index := make(map[domain.GroupKey]int)
	for pos, r := range rows {
		if !(r.Variance > 0) {
			return nil, fmt.Errorf("%w: observation %d has variance %g",
				domain.ErrNonPositiveVariance, r.Origin, r.Variance)
		}
		t.origin[pos] = r.Origin
		t.keys[pos] = r.Key
		t.value[pos] = r.Value
		t.weight[pos] = 1 / r.Variance
		t.scale[pos] = r.InverseScale

		g, ok := index[r.Key]
		if !ok {
			g = len(t.groups)
			index[r.Key] = g
			t.groups = append(t.groups, Group{Key: r.Key})
		}
		t.groups[g].Members = append(t.groups[g].Members, pos)
		t.groupOf[pos] = g
	}

	floats.MulTo(t.ws2, t.weight, t.scale)
	floats.MulTo(t.wsv, t.ws2, t.value)
	floats.Mul(t.ws2, t.scale)

	t.sumWSV = make([]float64, len(t.groups))
	t.sumWS2 = make([]float64, len(t.groups))
	for g, group := range t.groups {
		for _, pos := range group.Members {
			t.sumWSV[g] += t.wsv[pos]
			t.sumWS2[g] += t.ws2[pos]
		}
	}

	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.origin) }

// Origin returns the set index of the row at pos.
func (t *Table) Origin(pos int) int { return t.origin[pos] }

// Key returns the group key of the row at pos.
func (t *Table) Key(pos int) domain.GroupKey { return t.keys[pos] }

// Value returns the value of the row at pos.
func (t *Table) Value(pos int) float64 { return t.value[pos] }

// Weight returns 1/variance of the row at pos.
func (t *Table) Weight(pos int) float64 { return t.weight[pos] }

// InverseScale returns the inverse scale factor of the row at pos.
func (t *Table) InverseScale(pos int) float64 { return t.scale[pos] }

// GroupSize returns the number of members in the group of the row at pos.
func (t *Table) GroupSize(pos int) int { return len(t.groups[t.groupOf[pos]].Members) }

// Groups returns the groups in order of first appearance.
// The returned slice must not be modified.
func (t *Table) Groups() []Group { return t.groups }

// Sums returns Σ w·s·v and Σ w·s² over the group of the row at pos. With
// excludeSelf the row's own terms are removed.
func (t *Table) Sums(pos int, excludeSelf bool) (sumWSV, sumWS2 float64) {
	g := t.groupOf[pos]
	sumWSV, sumWS2 = t.sumWSV[g], t.sumWS2[g]
	if excludeSelf {
		sumWSV -= t.wsv[pos]
		sumWS2 -= t.ws2[pos]
	}
	return sumWSV, sumWS2
}

// GroupSums returns Σ w·s·v and Σ w·s² over group g.
func (t *Table) GroupSums(g int) (sumWSV, sumWS2 float64) {
	return t.sumWSV[g], t.sumWS2[g]
}
