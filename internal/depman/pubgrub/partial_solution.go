package pubgrub

import (
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// assignment is one entry of the partial solution log: a decision picking a
// version, or a derivation forced by an incompatibility.
type assignment struct {
	pkg      mod.Pkg
	t        term
	level    int
	decision bool
	cause    incompID
}

// packageAssignments indexes the log entries of one package.
type packageAssignments struct {
	indices     []int
	accumulated term
	decided     bool
	version     version.Version
}

// partialSolution is the ordered log of assignments made so far.
// The root decision opens level 0, so derivations preceding it share that level.
type partialSolution struct {
	log       []assignment
	level     int
	decisions int
	packages  map[mod.Pkg]*packageAssignments
}

func newPartialSolution() *partialSolution {
	return &partialSolution{packages: make(map[mod.Pkg]*packageAssignments)}
}

func (ps *partialSolution) push(a assignment) {
	ps.log = append(ps.log, a)
	pa, ok := ps.packages[a.pkg]
	if !ok {
		pa = &packageAssignments{accumulated: anyTerm()}
		ps.packages[a.pkg] = pa
	}
	pa.indices = append(pa.indices, len(ps.log)-1)
	pa.accumulated = pa.accumulated.intersection(a.t)
	if a.decision {
		pa.decided = true
		pa.version = mustLowest(a.t.r)
	}
}

func mustLowest(r version.Range) version.Version {
	v, ok := r.LowestVersion()
	if !ok {
		panic("pubgrub: decision on an empty range")
	}
	return v
}

func (ps *partialSolution) addDecision(pkg mod.Pkg, v version.Version) {
	if ps.decisions > 0 {
		ps.level++
	}
	ps.decisions++
	ps.push(assignment{
		pkg:      pkg,
		t:        positive(version.Exact(v)),
		level:    ps.level,
		decision: true,
		cause:    noCause,
	})
}

// addDerivation records the negation of pkg's term in the cause incompatibility.
func (ps *partialSolution) addDerivation(pkg mod.Pkg, cause incompID, s *store) {
	ps.push(assignment{
		pkg:   pkg,
		t:     s.get(cause).mustGet(pkg).negate(),
		level: ps.level,
		cause: cause,
	})
}

// backtrack drops every assignment made above level.
func (ps *partialSolution) backtrack(level int) {
	cut := len(ps.log)
	for i, a := range ps.log {
		if a.level > level {
			cut = i
			break
		}
	}
	kept := ps.log[:cut]
	ps.log = nil
	ps.level = level
	ps.decisions = 0
	ps.packages = make(map[mod.Pkg]*packageAssignments)
	for _, a := range kept {
		if a.decision {
			ps.decisions++
		}
		ps.push(a)
	}
}

// termFor returns the accumulated term of pkg, any when it has no assignment.
func (ps *partialSolution) termFor(pkg mod.Pkg) term {
	if pa, ok := ps.packages[pkg]; ok {
		return pa.accumulated
	}
	return anyTerm()
}

type incompRelation int

const (
	relSatisfied incompRelation = iota
	relContradicted
	relAlmostSatisfied
	relInconclusive
)

// relation tells how an incompatibility stands against the partial solution.
// For relAlmostSatisfied and relContradicted the package whose term decided it is returned.
func (ps *partialSolution) relation(inc *incompatibility) (incompRelation, mod.Pkg) {
	return ps.relationWith(inc, nil)
}

// relationWith is relation with the accumulated terms of some packages replaced.
func (ps *partialSolution) relationWith(inc *incompatibility, override map[mod.Pkg]term) (incompRelation, mod.Pkg) {
	rel := relSatisfied
	var almost mod.Pkg
	for _, pt := range inc.terms {
		acc, ok := override[pt.pkg]
		if !ok {
			acc = ps.termFor(pt.pkg)
		}
		switch pt.t.relation(acc) {
		case termSatisfied:
			continue
		case termContradicted:
			return relContradicted, pt.pkg
		}
		if rel == relSatisfied {
			rel = relAlmostSatisfied
			almost = pt.pkg
		} else {
			rel = relInconclusive
		}
	}
	return rel, almost
}

// satisfier locates the assignment that made an incompatibility satisfied,
// and the level of the assignment before it that already did for the other terms.
type satisfier struct {
	pkg           mod.Pkg
	index         int
	level         int
	cause         incompID
	previousLevel int
}

// earliest returns the log index at which the assignments of pa, intersected
// with start, first imply t.
func (ps *partialSolution) earliest(pa *packageAssignments, t, start term) int {
	acc := start
	for _, idx := range pa.indices {
		acc = acc.intersection(ps.log[idx].t)
		if acc.subsetOf(t) {
			return idx
		}
	}
	panic("pubgrub: incompatibility term is not satisfied by the partial solution")
}

// findSatisfier must only be called with a satisfied incompatibility.
func (ps *partialSolution) findSatisfier(inc *incompatibility) satisfier {
	indices := make([]int, len(inc.terms))
	sat := -1
	for i, pt := range inc.terms {
		indices[i] = ps.earliest(ps.packages[pt.pkg], pt.t, anyTerm())
		if sat < 0 || indices[i] > indices[sat] {
			sat = i
		}
	}
	satPkg := inc.terms[sat].pkg
	satIndex := indices[sat]
	satAssignment := ps.log[satIndex]

	indices[sat] = ps.earliest(ps.packages[satPkg], inc.terms[sat].t, satAssignment.t)
	previous := 0
	for _, idx := range indices {
		if lvl := ps.log[idx].level; lvl > previous {
			previous = lvl
		}
	}
	return satisfier{
		pkg:           satPkg,
		index:         satIndex,
		level:         satAssignment.level,
		cause:         satAssignment.cause,
		previousLevel: previous,
	}
}

// potentialPackages returns the undecided packages the solution requires,
// in name order.
func (ps *partialSolution) potentialPackages() []mod.Pkg {
	var pkgs []mod.Pkg
	for pkg, pa := range ps.packages {
		if !pa.decided && pa.accumulated.positive {
			pkgs = append(pkgs, pkg)
		}
	}
	mod.SortPkgs(pkgs)
	return pkgs
}

// extract returns every decided package with its version.
func (ps *partialSolution) extract() map[mod.Pkg]version.Version {
	out := make(map[mod.Pkg]version.Version, ps.decisions)
	for pkg, pa := range ps.packages {
		if pa.decided {
			out[pkg] = pa.version
		}
	}
	return out
}
