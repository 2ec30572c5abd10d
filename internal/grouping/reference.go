package grouping

import (
	"fmt"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/ports"
)

// ReferenceEntry is the reference estimate of one group.
type ReferenceEntry struct {
	Value    float64 `json:"value"`
	Variance float64 `json:"variance"`
}

// Reference holds per-group estimates from an external dataset. A key that is
// absent means the reference has no opinion about that group.
type Reference struct {
	entries map[domain.GroupKey]ReferenceEntry
}

// NewReference creates a reference from explicit entries.
func NewReference(entries map[domain.GroupKey]ReferenceEntry) *Reference {
	r := &Reference{entries: make(map[domain.GroupKey]ReferenceEntry, len(entries))}
	for k, v := range entries {
		r.entries[k] = v
	}
	return r
}

// ReferenceFromTable derives a reference from a grouped table: each group
// contributes its weighted estimate Σwsv/Σws² with variance 1/Σws². Groups
// with no usable weight are left out.
func ReferenceFromTable(t *Table) *Reference {
	r := &Reference{entries: make(map[domain.GroupKey]ReferenceEntry, len(t.groups))}
	for g, group := range t.groups {
		sumWSV, sumWS2 := t.GroupSums(g)
		if !(sumWS2 > 0) {
			continue
		}
		r.entries[group.Key] = ReferenceEntry{
			Value:    sumWSV / sumWS2,
			Variance: 1 / sumWS2,
		}
	}
	return r
}

// BuildReference groups target with grouper and derives a reference from it.
// Target rows already flagged as outliers do not contribute.
func BuildReference(target ports.ObservationSet, grouper ports.Grouper) (*Reference, error) {
	if target == nil {
		return nil, domain.ErrNilObservations
	}
	kept := make([]int, 0, target.Len())
	for i, outlier := range target.Flags(domain.FlagOutlier) {
		if !outlier {
			kept = append(kept, i)
		}
	}
	t, err := Build(target, grouper, kept)
	if err != nil {
		return nil, fmt.Errorf("build reference table: %w", err)
	}
	return ReferenceFromTable(t), nil
}

// Lookup returns the entry for key and whether it exists.
func (r *Reference) Lookup(key domain.GroupKey) (ReferenceEntry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Len returns the number of groups in the reference.
func (r *Reference) Len() int { return len(r.entries) }
