// Package version provides Elm package versions and the range algebra used by the solver.
package version

import (
	"fmt"
	"sort"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is an Elm package version. Elm versions are plain
// MAJOR.MINOR.PATCH triples without pre-release or build metadata.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Zero is the lowest version.
var Zero = Version{}

// New builds a version from its three components.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Parse parses a version string.
// Accepts versions with or without the "v" prefix.
// Examples: "1.2.3", "v1.2.3"
func Parse(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	sv, err := mm.StrictNewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version: %q: %w", s, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("invalid version: %q: pre-release and build metadata are not allowed", s)
	}
	return Version{Major: int(sv.Major()), Minor: int(sv.Minor()), Patch: int(sv.Patch())}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the Elm form of the version, "1.2.3".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	if v.Patch != other.Patch {
		if v.Patch < other.Patch {
			return -1
		}
		return 1
	}
	return 0
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// LessThanOrEqual returns true if v <= other.
func (v Version) LessThanOrEqual(other Version) bool {
	return v.Compare(other) <= 0
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// GreaterThanOrEqual returns true if v >= other.
func (v Version) GreaterThanOrEqual(other Version) bool {
	return v.Compare(other) >= 0
}

// Equal returns true if v == other.
func (v Version) Equal(other Version) bool {
	return v == other
}

// BumpMajor returns (major+1).0.0.
func (v Version) BumpMajor() Version {
	return Version{Major: v.Major + 1}
}

// BumpMinor returns major.(minor+1).0.
func (v Version) BumpMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// BumpPatch returns the immediate successor of v.
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// IsValid checks if a string is a valid Elm version.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Max returns the maximum version from a list.
func Max(versions ...Version) Version {
	if len(versions) == 0 {
		return Version{}
	}
	max := versions[0]
	for _, v := range versions[1:] {
		if v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

// Sort sorts a slice of versions in ascending order.
func Sort(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].LessThan(versions[j])
	})
}

// SortDesc sorts a slice of versions newest first.
func SortDesc(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].GreaterThan(versions[j])
	})
}
