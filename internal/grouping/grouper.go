package grouping

import (
	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/ports"
)

var (
	_ ports.Grouper = KeyFunc(nil)
	_ ports.Grouper = IdentityGrouper{}
	_ ports.Grouper = (*SymmetryGrouper)(nil)
)

// KeyFunc adapts an ordinary function to the ports.Grouper interface.
type KeyFunc func(domain.MillerIndex) domain.GroupKey

// Key calls f(index).
func (f KeyFunc) Key(index domain.MillerIndex) domain.GroupKey { return f(index) }

// IdentityGrouper groups only observations with identical raw indices.
type IdentityGrouper struct{}

// Key returns the index formatted as a key.
func (IdentityGrouper) Key(index domain.MillerIndex) domain.GroupKey {
	return domain.GroupKey(index.String())
}

// Operator is an integer 3x3 rotation acting on an index as a row vector.
type Operator [3][3]int

// Identity is the identity operator.
var Identity = Operator{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Apply returns index multiplied by the operator.
func (op Operator) Apply(index domain.MillerIndex) domain.MillerIndex {
	var out domain.MillerIndex
	for j := range 3 {
		out[j] = index[0]*op[0][j] + index[1]*op[1][j] + index[2]*op[2][j]
	}
	return out
}

// SymmetryGrouper maps every index to a canonical representative of its
// orbit under a set of rotation operators. Unless Anomalous is set, an index
// and its Friedel mate (-h,-k,-l) fall into the same group.
//
// The representative is the lexicographically greatest member of the orbit,
// which makes the key independent of operator order.
type SymmetryGrouper struct {
	operators []Operator
	anomalous bool
}

// NewSymmetryGrouper creates a grouper for the given operators. The identity
// is always included.
func NewSymmetryGrouper(anomalous bool, operators ...Operator) *SymmetryGrouper {
	ops := []Operator{Identity}
	for _, op := range operators {
		if op != Identity {
			ops = append(ops, op)
		}
	}
	return &SymmetryGrouper{operators: ops, anomalous: anomalous}
}

// Key returns the canonical representative of index.
func (g *SymmetryGrouper) Key(index domain.MillerIndex) domain.GroupKey {
	best := index
	consider := func(c domain.MillerIndex) {
		if greater(c, best) {
			best = c
		}
	}
	for _, op := range g.operators {
		r := op.Apply(index)
		consider(r)
		if !g.anomalous {
			consider(domain.MillerIndex{-r[0], -r[1], -r[2]})
		}
	}
	return domain.GroupKey(best.String())
}

func greater(a, b domain.MillerIndex) bool {
	for i := range 3 {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
