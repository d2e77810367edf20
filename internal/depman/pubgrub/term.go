// Package pubgrub implements the PubGrub version solving algorithm over Elm packages.
package pubgrub

import (
	"martianoff/elmdeps/internal/depman/version"
)

// term is a statement about the version of one package: it is in the range
// (positive) or it is not (negative).
type term struct {
	positive bool
	r        version.Range
}

func positive(r version.Range) term {
	return term{positive: true, r: r}
}

func negative(r version.Range) term {
	return term{positive: false, r: r}
}

// anyTerm is satisfied by every assignment, including leaving the package out.
func anyTerm() term {
	return negative(version.Empty())
}

func (t term) negate() term {
	return term{positive: !t.positive, r: t.r}
}

// isEmpty reports whether t can never hold. A negative term always can,
// by leaving the package out of the solution.
func (t term) isEmpty() bool {
	return t.positive && t.r.IsEmpty()
}

func (t term) isAny() bool {
	return !t.positive && t.r.IsEmpty()
}

func (t term) contains(v version.Version) bool {
	if t.positive {
		return t.r.Contains(v)
	}
	return !t.r.Contains(v)
}

func (t term) intersection(other term) term {
	switch {
	case t.positive && other.positive:
		return positive(t.r.Intersection(other.r))
	case t.positive:
		return positive(t.r.Intersection(other.r.Complement()))
	case other.positive:
		return positive(t.r.Complement().Intersection(other.r))
	default:
		return negative(t.r.Union(other.r))
	}
}

func (t term) union(other term) term {
	return t.negate().intersection(other.negate()).negate()
}

func (t term) equal(other term) bool {
	return t.positive == other.positive && t.r.Equal(other.r)
}

// subsetOf reports whether every assignment satisfying t satisfies other.
func (t term) subsetOf(other term) bool {
	return t.intersection(other).equal(t)
}

type termRelation int

const (
	termSatisfied termRelation = iota
	termContradicted
	termInconclusive
)

// relation tells how t stands given the accumulated term of a package in the
// partial solution.
func (t term) relation(accumulated term) termRelation {
	full := accumulated.intersection(t)
	switch {
	case full.equal(accumulated):
		return termSatisfied
	case full.isEmpty():
		return termContradicted
	default:
		return termInconclusive
	}
}

func (t term) String() string {
	if t.positive {
		return t.r.String()
	}
	return "not (" + t.r.String() + ")"
}
