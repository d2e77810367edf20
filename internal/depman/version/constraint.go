package version

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseConstraint parses a version constraint string into a Range.
// Supported formats:
//   - "1.0.0 <= v < 2.0.0" - Elm constraint (either side may use < or <=)
//   - "v1.2.3" or "1.2.3" - exact version
//   - "^1.2.3" - compatible (>=1.2.3, <2.0.0 for major>0; >=0.2.3, <0.3.0 for major=0)
//   - "~1.2.3" - approximate (>=1.2.3, <1.3.0)
//   - ">=1.2.3" - greater than or equal
//   - ">1.2.3" - greater than
//   - "<=1.2.3" - less than or equal
//   - "<1.2.3" - less than
//   - ">=1.0.0,<2.0.0" - range (comma-separated AND)
//   - "latest" or "*" - any version
func ParseConstraint(s string) (Range, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Range{}, fmt.Errorf("empty constraint")
	}

	if s == "latest" || s == "*" {
		return Full(), nil
	}

	if elmConstraintRegex.MatchString(s) {
		return ParseElm(s)
	}

	// Handle comma-separated AND constraints
	if strings.Contains(s, ",") {
		r := Full()
		for _, part := range strings.Split(s, ",") {
			c, err := ParseConstraint(part)
			if err != nil {
				return Range{}, err
			}
			r = r.Intersection(c)
		}
		return r, nil
	}

	if strings.HasPrefix(s, "^") {
		return parseCaretConstraint(s[1:])
	}

	if strings.HasPrefix(s, "~") {
		return parseTildeConstraint(s[1:])
	}

	// Two-character operators first.
	for _, op := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(s, op) {
			return parseComparisonConstraint(op, s[len(op):])
		}
	}

	// Default: exact version
	v, err := Parse(s)
	if err != nil {
		return Range{}, fmt.Errorf("invalid constraint %q: %w", s, err)
	}
	return Exact(v), nil
}

// MustParseConstraint is like ParseConstraint but panics on error.
func MustParseConstraint(s string) Range {
	r, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseComparisonConstraint(op, versionStr string) (Range, error) {
	v, err := Parse(strings.TrimSpace(versionStr))
	if err != nil {
		return Range{}, fmt.Errorf("invalid version in constraint: %w", err)
	}
	switch op {
	case ">=":
		return HigherThan(v), nil
	case ">":
		return HigherThan(v.BumpPatch()), nil
	case "<=":
		return StrictlyLowerThan(v.BumpPatch()), nil
	case "<":
		return StrictlyLowerThan(v), nil
	default:
		return Exact(v), nil
	}
}

// ^1.2.3 means >=1.2.3, <2.0.0
// ^0.2.3 means >=0.2.3, <0.3.0
// ^0.0.3 means >=0.0.3, <0.0.4
func parseCaretConstraint(versionStr string) (Range, error) {
	v, err := Parse(strings.TrimSpace(versionStr))
	if err != nil {
		return Range{}, fmt.Errorf("invalid version in caret constraint: %w", err)
	}

	var maxNext Version
	if v.Major == 0 {
		if v.Minor == 0 {
			maxNext = v.BumpPatch()
		} else {
			maxNext = v.BumpMinor()
		}
	} else {
		maxNext = v.BumpMajor()
	}
	return Between(v, maxNext), nil
}

// ~1.2.3 means >=1.2.3, <1.3.0
func parseTildeConstraint(versionStr string) (Range, error) {
	v, err := Parse(strings.TrimSpace(versionStr))
	if err != nil {
		return Range{}, fmt.Errorf("invalid version in tilde constraint: %w", err)
	}
	return Between(v, v.BumpMinor()), nil
}

var elmConstraintRegex = regexp.MustCompile(`^(v?\d+\.\d+\.\d+)\s*(<=|<)\s*v\s*(<=|<)\s*(v?\d+\.\d+\.\d+)$`)

// ParseElm parses the constraint syntax of elm.json files, "1.0.0 <= v < 2.0.0".
func ParseElm(s string) (Range, error) {
	m := elmConstraintRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Range{}, fmt.Errorf("invalid elm constraint %q", s)
	}
	lo, err := Parse(m[1])
	if err != nil {
		return Range{}, fmt.Errorf("invalid elm constraint %q: %w", s, err)
	}
	hi, err := Parse(m[4])
	if err != nil {
		return Range{}, fmt.Errorf("invalid elm constraint %q: %w", s, err)
	}
	if m[2] == "<" {
		lo = lo.BumpPatch()
	}
	if m[3] == "<=" {
		hi = hi.BumpPatch()
	}
	return Between(lo, hi), nil
}

// FormatElm renders a single bounded interval as an elm.json constraint.
func FormatElm(r Range) (string, error) {
	lo, hi, unbounded, ok := r.Bounds()
	if !ok || unbounded {
		return "", fmt.Errorf("range %s has no elm constraint form", r)
	}
	return fmt.Sprintf("%s <= v < %s", lo, hi), nil
}

// Compatible returns the range elm uses for a pinned version, [v, next major).
func Compatible(v Version) Range {
	return Between(v, v.BumpMajor())
}

// SelectBest selects the highest version of the range.
func SelectBest(r Range, versions []Version) (Version, bool) {
	var best Version
	found := false

	for _, v := range versions {
		if r.Contains(v) {
			if !found || v.GreaterThan(best) {
				best = v
				found = true
			}
		}
	}

	return best, found
}
