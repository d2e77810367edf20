package pubgrub

import (
	"fmt"
	"strings"

	"martianoff/elmdeps/internal/depman/mod"
)

// reporter turns the derivation tree of a terminal incompatibility into a
// numbered, human readable explanation.
type reporter struct {
	store *store
	root  mod.Pkg
	// shared marks derived incompatibilities reached more than once.
	shared  map[incompID]bool
	refs    map[incompID]int
	nextRef int
	lines   []string
}

func report(s *store, id incompID, root mod.Pkg) string {
	inc := s.get(id)
	if !inc.isDerived() {
		return inc.String()
	}
	r := &reporter{
		store:  s,
		root:   root,
		shared: make(map[incompID]bool),
		refs:   make(map[incompID]int),
	}
	r.markShared(id, make(map[incompID]bool))
	r.build(id)
	return strings.Join(r.lines, "\n")
}

func (r *reporter) markShared(id incompID, seen map[incompID]bool) {
	inc := r.store.get(id)
	if !inc.isDerived() {
		return
	}
	if seen[id] {
		r.shared[id] = true
		return
	}
	seen[id] = true
	r.markShared(inc.cause1, seen)
	r.markShared(inc.cause2, seen)
}

func (r *reporter) build(id incompID) {
	r.explain(id)
	if r.shared[id] && r.refs[id] == 0 {
		r.addRef(id)
	}
}

func (r *reporter) addRef(id incompID) {
	r.nextRef++
	r.refs[id] = r.nextRef
	if last := len(r.lines) - 1; last >= 0 {
		r.lines[last] += fmt.Sprintf(" (%d)", r.nextRef)
	}
}

func (r *reporter) ref(id incompID) (int, bool) {
	n, ok := r.refs[id]
	return n, ok && n > 0
}

func (r *reporter) terms(id incompID) string {
	return termsString(r.store.get(id).terms, r.root)
}

func (r *reporter) explain(id incompID) {
	inc := r.store.get(id)
	c1, c2 := r.store.get(inc.cause1), r.store.get(inc.cause2)
	switch {
	case !c1.isDerived() && !c2.isDerived():
		r.lines = append(r.lines, fmt.Sprintf("Because %s and %s, %s.", c1, c2, r.terms(id)))
	case c1.isDerived() && !c2.isDerived():
		r.oneEach(inc.cause1, inc.cause2, id)
	case !c1.isDerived() && c2.isDerived():
		r.oneEach(inc.cause2, inc.cause1, id)
	default:
		r.bothDerived(inc.cause1, inc.cause2, id)
	}
}

func (r *reporter) bothDerived(id1, id2, current incompID) {
	ref1, ok1 := r.ref(id1)
	ref2, ok2 := r.ref(id2)
	switch {
	case ok1 && ok2:
		r.lines = append(r.lines, fmt.Sprintf("Because %s (%d) and %s (%d), %s.",
			r.terms(id1), ref1, r.terms(id2), ref2, r.terms(current)))
	case ok1:
		r.build(id2)
		r.lines = append(r.lines, fmt.Sprintf("And because %s (%d), %s.", r.terms(id1), ref1, r.terms(current)))
	case ok2:
		r.build(id1)
		r.lines = append(r.lines, fmt.Sprintf("And because %s (%d), %s.", r.terms(id2), ref2, r.terms(current)))
	default:
		r.build(id1)
		if r.shared[id1] {
			r.lines = append(r.lines, "")
			r.build(current)
			return
		}
		r.addRef(id1)
		ref1 := r.refs[id1]
		r.lines = append(r.lines, "")
		r.build(id2)
		r.lines = append(r.lines, fmt.Sprintf("And because %s (%d), %s.", r.terms(id1), ref1, r.terms(current)))
	}
}

func (r *reporter) oneEach(derived, external, current incompID) {
	if ref, ok := r.ref(derived); ok {
		r.lines = append(r.lines, fmt.Sprintf("Because %s (%d) and %s, %s.",
			r.terms(derived), ref, r.store.get(external), r.terms(current)))
		return
	}
	r.recurseOneEach(derived, external, current)
}

func (r *reporter) recurseOneEach(derived, external, current incompID) {
	inc := r.store.get(derived)
	d1, d2 := r.store.get(inc.cause1), r.store.get(inc.cause2)
	ext := r.store.get(external)
	switch {
	case d1.isDerived() && !d2.isDerived():
		r.build(inc.cause1)
		r.lines = append(r.lines, fmt.Sprintf("And because %s and %s, %s.", d2, ext, r.terms(current)))
	case !d1.isDerived() && d2.isDerived():
		r.build(inc.cause2)
		r.lines = append(r.lines, fmt.Sprintf("And because %s and %s, %s.", d1, ext, r.terms(current)))
	default:
		r.build(derived)
		r.lines = append(r.lines, fmt.Sprintf("And because %s, %s.", ext, r.terms(current)))
	}
}

// termsString states what an incompatibility rules out.
func termsString(terms []pkgTerm, root mod.Pkg) string {
	switch len(terms) {
	case 0:
		return "version solving failed"
	case 1:
		pt := terms[0]
		if pt.pkg == root && pt.t.positive {
			return "version solving failed"
		}
		if pt.t.positive {
			return describe(pt.pkg, pt.t.r) + " is forbidden"
		}
		return describe(pt.pkg, pt.t.r) + " is mandatory"
	case 2:
		a, b := terms[0], terms[1]
		if a.t.positive && !b.t.positive {
			return describe(a.pkg, a.t.r) + " depends on " + describe(b.pkg, b.t.r)
		}
		if !a.t.positive && b.t.positive {
			return describe(b.pkg, b.t.r) + " depends on " + describe(a.pkg, a.t.r)
		}
	}
	parts := make([]string, len(terms))
	for i, pt := range terms {
		parts[i] = pt.pkg.String() + " " + pt.t.String()
	}
	return strings.Join(parts, ", ") + " are incompatible"
}
