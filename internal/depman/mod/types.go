// Package mod provides Elm package identifiers and parsing and writing of elm.json files.
package mod

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"martianoff/elmdeps/internal/depman/version"
)

// Pkg identifies an Elm package, "author/name".
type Pkg struct {
	Author string
	Name   string
}

// RootPkg is the synthetic package standing for an application project.
// Registry packages always have both parts set, so it never collides with one.
var RootPkg = Pkg{Author: "root"}

var pkgRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*/[a-z0-9][a-z0-9-]*$`)

// ParsePkg parses an "author/name" identifier.
func ParsePkg(s string) (Pkg, error) {
	s = strings.TrimSpace(s)
	if !pkgRegex.MatchString(s) {
		return Pkg{}, fmt.Errorf("invalid package name %q, expected author/name", s)
	}
	idx := strings.Index(s, "/")
	return Pkg{Author: s[:idx], Name: s[idx+1:]}, nil
}

// MustParsePkg is like ParsePkg but panics on error.
func MustParsePkg(s string) Pkg {
	p, err := ParsePkg(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRoot reports whether p is the synthetic root package.
func (p Pkg) IsRoot() bool {
	return p == RootPkg
}

func (p Pkg) String() string {
	if p.IsRoot() {
		return "root"
	}
	return p.Author + "/" + p.Name
}

// Less orders packages lexicographically by their text form.
func (p Pkg) Less(other Pkg) bool {
	return p.String() < other.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Pkg) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pkg) UnmarshalText(text []byte) error {
	parsed, err := ParsePkg(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SortPkgs sorts packages lexicographically.
func SortPkgs(pkgs []Pkg) {
	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].Less(pkgs[j])
	})
}

// Dependencies maps each dependency to the range of versions it accepts.
type Dependencies map[Pkg]version.Range

// Sorted returns the dependency packages in lexicographic order.
func (d Dependencies) Sorted() []Pkg {
	pkgs := make([]Pkg, 0, len(d))
	for p := range d {
		pkgs = append(pkgs, p)
	}
	SortPkgs(pkgs)
	return pkgs
}

// Clone returns a copy of d.
func (d Dependencies) Clone() Dependencies {
	out := make(Dependencies, len(d))
	for p, r := range d {
		out[p] = r
	}
	return out
}

// Constraint is an elm.json version constraint, "1.0.0 <= v < 2.0.0".
type Constraint struct {
	version.Range
}

// NewConstraint wraps a range into an elm.json constraint.
func NewConstraint(r version.Range) Constraint {
	return Constraint{Range: r}
}

// MarshalText implements encoding.TextMarshaler.
func (c Constraint) MarshalText() ([]byte, error) {
	s, err := version.FormatElm(c.Range)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(text []byte) error {
	r, err := version.ParseElm(string(text))
	if err != nil {
		return err
	}
	c.Range = r
	return nil
}
