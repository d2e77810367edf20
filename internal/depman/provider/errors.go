package provider

import (
	"errors"
	"fmt"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// PackageNotFoundError is returned when a provider does not know a package.
type PackageNotFoundError struct {
	Pkg    mod.Pkg
	Source string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %s not found in %s", e.Pkg, e.Source)
}

// VersionNotFoundError is returned when a provider does not know a package version.
type VersionNotFoundError struct {
	Pkg     mod.Pkg
	Version version.Version
	Source  string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("package %s %s not found in %s", e.Pkg, e.Version, e.Source)
}

// IsNotFound reports whether err, or an error it wraps, is a not-found answer
// rather than a failure to retrieve data.
func IsNotFound(err error) bool {
	var pe *PackageNotFoundError
	var ve *VersionNotFoundError
	return errors.As(err, &pe) || errors.As(err, &ve)
}
