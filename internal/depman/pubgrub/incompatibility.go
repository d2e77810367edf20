package pubgrub

import (
	"fmt"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// incompID indexes an incompatibility in the store.
type incompID int

const noCause incompID = -1

type incompKind int

const (
	// kindNotRoot seeds the resolution: the root must be selected at its version.
	kindNotRoot incompKind = iota
	// kindNoVersions: no available version of pkg lies in r.
	kindNoVersions
	// kindFromDependency: pkg at v depends on dep in r.
	kindFromDependency
	// kindSelfDependency: pkg at v depends on itself at a range excluding v.
	kindSelfDependency
	// kindEmptyDependency: pkg at v depends on dep with an empty range.
	kindEmptyDependency
	// kindDerived: learned from cause1 and cause2 during conflict resolution.
	kindDerived
)

type pkgTerm struct {
	pkg mod.Pkg
	t   term
}

// incompatibility is a set of terms that cannot all hold at once.
// Terms keep insertion order so explanations are stable.
type incompatibility struct {
	terms []pkgTerm
	kind  incompKind

	pkg     mod.Pkg
	version version.Version
	dep     mod.Pkg
	r       version.Range

	cause1 incompID
	cause2 incompID
}

func (inc *incompatibility) get(pkg mod.Pkg) (term, bool) {
	for _, pt := range inc.terms {
		if pt.pkg == pkg {
			return pt.t, true
		}
	}
	return term{}, false
}

func (inc *incompatibility) mustGet(pkg mod.Pkg) term {
	t, ok := inc.get(pkg)
	if !ok {
		panic(fmt.Sprintf("pubgrub: %s is not part of the incompatibility", pkg))
	}
	return t
}

func (inc *incompatibility) isDerived() bool {
	return inc.kind == kindDerived
}

// isTerminal reports whether the incompatibility makes resolution impossible:
// it has no terms, or only a term on the root that the root version satisfies.
func (inc *incompatibility) isTerminal(root mod.Pkg, rootVersion version.Version) bool {
	switch len(inc.terms) {
	case 0:
		return true
	case 1:
		return inc.terms[0].pkg == root && inc.terms[0].t.contains(rootVersion)
	default:
		return false
	}
}

func notRoot(root mod.Pkg, v version.Version) *incompatibility {
	return &incompatibility{
		terms:   []pkgTerm{{pkg: root, t: negative(version.Exact(v))}},
		kind:    kindNotRoot,
		pkg:     root,
		version: v,
		cause1:  noCause,
		cause2:  noCause,
	}
}

func noVersions(pkg mod.Pkg, r version.Range) *incompatibility {
	return &incompatibility{
		terms:  []pkgTerm{{pkg: pkg, t: positive(r)}},
		kind:   kindNoVersions,
		pkg:    pkg,
		r:      r,
		cause1: noCause,
		cause2: noCause,
	}
}

func fromDependency(pkg mod.Pkg, v version.Version, dep mod.Pkg, r version.Range) *incompatibility {
	return &incompatibility{
		terms: []pkgTerm{
			{pkg: pkg, t: positive(version.Exact(v))},
			{pkg: dep, t: negative(r)},
		},
		kind:    kindFromDependency,
		pkg:     pkg,
		version: v,
		dep:     dep,
		r:       r,
		cause1:  noCause,
		cause2:  noCause,
	}
}

func selfDependency(pkg mod.Pkg, v version.Version, r version.Range) *incompatibility {
	return &incompatibility{
		terms:   []pkgTerm{{pkg: pkg, t: positive(version.Exact(v))}},
		kind:    kindSelfDependency,
		pkg:     pkg,
		version: v,
		r:       r,
		cause1:  noCause,
		cause2:  noCause,
	}
}

func emptyDependency(pkg mod.Pkg, v version.Version, dep mod.Pkg) *incompatibility {
	return &incompatibility{
		terms:   []pkgTerm{{pkg: pkg, t: positive(version.Exact(v))}},
		kind:    kindEmptyDependency,
		pkg:     pkg,
		version: v,
		dep:     dep,
		cause1:  noCause,
		cause2:  noCause,
	}
}

// priorCause combines an incompatibility with the cause of its satisfier.
// The terms on pkg are merged by union, the other terms by intersection, and
// terms that every assignment satisfies are dropped.
func priorCause(s *store, id, satisfierCause incompID, pkg mod.Pkg) *incompatibility {
	inc1, inc2 := s.get(id), s.get(satisfierCause)
	terms := make([]pkgTerm, 0, len(inc1.terms)+len(inc2.terms))
	for _, pt := range inc1.terms {
		if pt.pkg != pkg {
			terms = append(terms, pt)
		}
	}
	for _, pt := range inc2.terms {
		if pt.pkg == pkg {
			continue
		}
		merged := false
		for i := range terms {
			if terms[i].pkg == pt.pkg {
				terms[i].t = terms[i].t.intersection(pt.t)
				merged = true
				break
			}
		}
		if !merged {
			terms = append(terms, pt)
		}
	}
	if u := inc1.mustGet(pkg).union(inc2.mustGet(pkg)); !u.isAny() {
		terms = append(terms, pkgTerm{pkg: pkg, t: u})
	}
	return &incompatibility{
		terms:  terms,
		kind:   kindDerived,
		cause1: id,
		cause2: satisfierCause,
	}
}

// store is the arena owning every incompatibility of a resolution.
type store struct {
	incompats []*incompatibility
}

func (s *store) add(inc *incompatibility) incompID {
	s.incompats = append(s.incompats, inc)
	return incompID(len(s.incompats) - 1)
}

func (s *store) get(id incompID) *incompatibility {
	return s.incompats[id]
}

func describe(pkg mod.Pkg, r version.Range) string {
	if r.IsFull() {
		return pkg.String()
	}
	return pkg.String() + " " + r.String()
}

// String explains an external incompatibility.
func (inc *incompatibility) String() string {
	switch inc.kind {
	case kindNotRoot:
		return fmt.Sprintf("we are solving dependencies of %s %s", inc.pkg, inc.version)
	case kindNoVersions:
		if inc.r.IsFull() {
			return fmt.Sprintf("there is no available version for %s", inc.pkg)
		}
		return fmt.Sprintf("there is no version of %s", describe(inc.pkg, inc.r))
	case kindFromDependency:
		return fmt.Sprintf("%s %s depends on %s", inc.pkg, inc.version, describe(inc.dep, inc.r))
	case kindSelfDependency:
		return fmt.Sprintf("%s %s depends on itself at %s", inc.pkg, inc.version, inc.r)
	case kindEmptyDependency:
		return fmt.Sprintf("%s %s depends on %s with an empty range", inc.pkg, inc.version, inc.dep)
	default:
		return termsString(inc.terms, mod.Pkg{})
	}
}
