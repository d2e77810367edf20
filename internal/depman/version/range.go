package version

import (
	"sort"
	"strings"
)

// interval is the half-open set [lo, hi). An unbounded interval has no upper limit.
type interval struct {
	lo        Version
	hi        Version
	unbounded bool
}

func (iv interval) contains(v Version) bool {
	return v.GreaterThanOrEqual(iv.lo) && (iv.unbounded || v.LessThan(iv.hi))
}

func (iv interval) empty() bool {
	return !iv.unbounded && iv.hi.LessThanOrEqual(iv.lo)
}

// Range is a set of versions stored as sorted, disjoint, non-touching
// half-open intervals. Only the last interval may be unbounded.
// The zero value is the empty range.
type Range struct {
	intervals []interval
}

// Empty returns the range containing no version.
func Empty() Range {
	return Range{}
}

// Full returns the range containing every version.
func Full() Range {
	return Range{intervals: []interval{{lo: Zero, unbounded: true}}}
}

// Exact returns the range containing only v.
func Exact(v Version) Range {
	return Range{intervals: []interval{{lo: v, hi: v.BumpPatch()}}}
}

// Between returns [lo, hi), empty if lo >= hi.
func Between(lo, hi Version) Range {
	if hi.LessThanOrEqual(lo) {
		return Empty()
	}
	return Range{intervals: []interval{{lo: lo, hi: hi}}}
}

// HigherThan returns [v, ∞).
func HigherThan(v Version) Range {
	return Range{intervals: []interval{{lo: v, unbounded: true}}}
}

// StrictlyLowerThan returns [0.0.0, v).
func StrictlyLowerThan(v Version) Range {
	return Between(Zero, v)
}

func normalize(ivs []interval) Range {
	kept := make([]interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.empty() {
			kept = append(kept, iv)
		}
	}
	if len(kept) == 0 {
		return Range{}
	}
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].lo.LessThan(kept[j].lo)
	})
	merged := []interval{kept[0]}
	for _, iv := range kept[1:] {
		last := &merged[len(merged)-1]
		if last.unbounded {
			break
		}
		// Overlapping or touching intervals collapse into one.
		if iv.lo.LessThanOrEqual(last.hi) {
			if iv.unbounded {
				last.unbounded = true
				last.hi = Version{}
			} else if iv.hi.GreaterThan(last.hi) {
				last.hi = iv.hi
			}
			continue
		}
		merged = append(merged, iv)
	}
	return Range{intervals: merged}
}

// IsEmpty reports whether the range contains no version.
func (r Range) IsEmpty() bool {
	return len(r.intervals) == 0
}

// IsFull reports whether the range contains every version.
func (r Range) IsFull() bool {
	return len(r.intervals) == 1 && r.intervals[0].lo == Zero && r.intervals[0].unbounded
}

// Contains reports whether v is in the range.
func (r Range) Contains(v Version) bool {
	for _, iv := range r.intervals {
		if iv.contains(v) {
			return true
		}
		if v.LessThan(iv.lo) {
			return false
		}
	}
	return false
}

// Complement returns every version not in r.
func (r Range) Complement() Range {
	out := make([]interval, 0, len(r.intervals)+1)
	start := Zero
	open := true
	for _, iv := range r.intervals {
		if open && start.LessThan(iv.lo) {
			out = append(out, interval{lo: start, hi: iv.lo})
		}
		if iv.unbounded {
			open = false
			break
		}
		start = iv.hi
	}
	if open {
		out = append(out, interval{lo: start, unbounded: true})
	}
	return Range{intervals: out}
}

// Intersection returns the versions in both r and other.
func (r Range) Intersection(other Range) Range {
	var out []interval
	for _, a := range r.intervals {
		for _, b := range other.intervals {
			iv := interval{lo: a.lo}
			if b.lo.GreaterThan(iv.lo) {
				iv.lo = b.lo
			}
			switch {
			case a.unbounded && b.unbounded:
				iv.unbounded = true
			case a.unbounded:
				iv.hi = b.hi
			case b.unbounded:
				iv.hi = a.hi
			case a.hi.LessThan(b.hi):
				iv.hi = a.hi
			default:
				iv.hi = b.hi
			}
			out = append(out, iv)
		}
	}
	return normalize(out)
}

// Union returns the versions in r or other.
func (r Range) Union(other Range) Range {
	out := make([]interval, 0, len(r.intervals)+len(other.intervals))
	out = append(out, r.intervals...)
	out = append(out, other.intervals...)
	return normalize(out)
}

// SubsetOf reports whether every version of r is in other.
func (r Range) SubsetOf(other Range) bool {
	return r.Intersection(other).Equal(r)
}

// Equal reports whether both ranges hold the same versions.
func (r Range) Equal(other Range) bool {
	if len(r.intervals) != len(other.intervals) {
		return false
	}
	for i := range r.intervals {
		if r.intervals[i] != other.intervals[i] {
			return false
		}
	}
	return true
}

// LowestVersion returns the smallest version of the range.
func (r Range) LowestVersion() (Version, bool) {
	if r.IsEmpty() {
		return Version{}, false
	}
	return r.intervals[0].lo, true
}

// Bounds returns the limits of a range made of a single interval.
// ok is false for the empty range and for ranges of several intervals.
func (r Range) Bounds() (lo, hi Version, unbounded, ok bool) {
	if len(r.intervals) != 1 {
		return Version{}, Version{}, false, false
	}
	iv := r.intervals[0]
	return iv.lo, iv.hi, iv.unbounded, true
}

// Filter returns the versions of vs that fall in r, preserving order.
func (r Range) Filter(vs []Version) []Version {
	var out []Version
	for _, v := range vs {
		if r.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

func (r Range) String() string {
	if r.IsEmpty() {
		return "∅"
	}
	if r.IsFull() {
		return "*"
	}
	parts := make([]string, len(r.intervals))
	for i, iv := range r.intervals {
		parts[i] = iv.String()
	}
	return strings.Join(parts, " OR ")
}

func (iv interval) String() string {
	switch {
	case iv.unbounded:
		return ">= " + iv.lo.String()
	case iv.hi == iv.lo.BumpPatch():
		return iv.lo.String()
	case iv.lo == Zero:
		return "< " + iv.hi.String()
	default:
		return iv.lo.String() + " <= v < " + iv.hi.String()
	}
}
