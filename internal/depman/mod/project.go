package mod

import (
	"encoding/json"
	"fmt"
	"os"

	"martianoff/elmdeps/internal/depman/version"
)

// Project types as written in the "type" field of elm.json.
const (
	TypeApplication = "application"
	TypePackage     = "package"
)

// Project is a parsed elm.json file. Exactly one of Application and Package is set.
type Project struct {
	Application *Application
	Package     *Package
}

// Application is the elm.json of an application.
type Application struct {
	SourceDirectories []string        `json:"source-directories"`
	ElmVersion        version.Version `json:"elm-version"`
	Dependencies      AppDependencies `json:"dependencies"`
	TestDependencies  AppDependencies `json:"test-dependencies"`
}

// AppDependencies are the exact versions an application pins.
type AppDependencies struct {
	Direct   map[Pkg]version.Version `json:"direct"`
	Indirect map[Pkg]version.Version `json:"indirect"`
}

// Package is the elm.json of a package.
type Package struct {
	Name             Pkg                `json:"name"`
	Summary          string             `json:"summary"`
	License          string             `json:"license"`
	Version          version.Version    `json:"version"`
	ExposedModules   json.RawMessage    `json:"exposed-modules"`
	ElmVersion       Constraint         `json:"elm-version"`
	Dependencies     map[Pkg]Constraint `json:"dependencies"`
	TestDependencies map[Pkg]Constraint `json:"test-dependencies"`
}

// ParseError represents an error during elm.json parsing.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("elm.json: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses elm.json content.
func Parse(data []byte) (*Project, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, &ParseError{Err: err}
	}

	switch header.Type {
	case TypeApplication:
		app := &Application{}
		if err := json.Unmarshal(data, app); err != nil {
			return nil, &ParseError{Err: err}
		}
		app.normalize()
		return &Project{Application: app}, nil
	case TypePackage:
		pkg := &Package{}
		if err := json.Unmarshal(data, pkg); err != nil {
			return nil, &ParseError{Err: err}
		}
		pkg.normalize()
		return &Project{Package: pkg}, nil
	default:
		return nil, &ParseError{Err: fmt.Errorf("unknown project type %q", header.Type)}
	}
}

// ParseFile parses an elm.json file from a filesystem path.
func ParseFile(path string) (*Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read elm.json: %w", err)
	}
	p, err := Parse(content)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return p, nil
}

// PackageDependencies reads only the dependencies of a package elm.json,
// the part the solver needs from cached and registry packages.
func PackageDependencies(data []byte) (Dependencies, error) {
	var pkg struct {
		Dependencies map[Pkg]Constraint `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, &ParseError{Err: err}
	}
	deps := make(Dependencies, len(pkg.Dependencies))
	for p, c := range pkg.Dependencies {
		deps[p] = c.Range
	}
	return deps, nil
}

func (a *Application) normalize() {
	if a.SourceDirectories == nil {
		a.SourceDirectories = []string{}
	}
	a.Dependencies.normalize()
	a.TestDependencies.normalize()
}

func (d *AppDependencies) normalize() {
	if d.Direct == nil {
		d.Direct = make(map[Pkg]version.Version)
	}
	if d.Indirect == nil {
		d.Indirect = make(map[Pkg]version.Version)
	}
}

func (p *Package) normalize() {
	if p.Dependencies == nil {
		p.Dependencies = make(map[Pkg]Constraint)
	}
	if p.TestDependencies == nil {
		p.TestDependencies = make(map[Pkg]Constraint)
	}
	if p.ExposedModules == nil {
		p.ExposedModules = json.RawMessage("[]")
	}
}

// NewApplication creates an empty application elm.json.
func NewApplication(elmVersion version.Version, sourceDirs []string) *Application {
	a := &Application{SourceDirectories: sourceDirs, ElmVersion: elmVersion}
	a.normalize()
	return a
}

// Root returns the package id and version the solver uses for the project.
func (p *Project) Root() (Pkg, version.Version) {
	if p.Package != nil {
		return p.Package.Name, p.Package.Version
	}
	return RootPkg, version.Zero
}

// DirectDependencies returns the project's direct dependencies as ranges.
// Applications contribute exact pins, packages their declared constraints.
// With tests set, direct test dependencies are included as well.
func (p *Project) DirectDependencies(tests bool) Dependencies {
	deps := make(Dependencies)
	if app := p.Application; app != nil {
		for pkg, v := range app.Dependencies.Direct {
			deps[pkg] = version.Exact(v)
		}
		if tests {
			for pkg, v := range app.TestDependencies.Direct {
				deps[pkg] = version.Exact(v)
			}
		}
		return deps
	}
	for pkg, c := range p.Package.Dependencies {
		deps[pkg] = c.Range
	}
	if tests {
		for pkg, c := range p.Package.TestDependencies {
			deps[pkg] = c.Range
		}
	}
	return deps
}

// Lookup returns the version an application already lists for pkg, in any group.
func (a *Application) Lookup(pkg Pkg) (version.Version, bool) {
	for _, group := range []map[Pkg]version.Version{
		a.Dependencies.Direct,
		a.Dependencies.Indirect,
		a.TestDependencies.Direct,
		a.TestDependencies.Indirect,
	} {
		if v, ok := group[pkg]; ok {
			return v, true
		}
	}
	return version.Version{}, false
}
