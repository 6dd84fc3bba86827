// Package manifest reads .NET project files into immutable Project records.
package manifest

import (
	"path/filepath"
	"strings"
)

// Dialect identifies the project file schema.
type Dialect string

const (
	// DialectSDK is the modern <Project Sdk="..."> format
	DialectSDK Dialect = "sdk"
	// DialectLegacy is the pre-SDK msbuild/2003 format
	DialectLegacy Dialect = "legacy"
)

// Package is a declared third-party dependency.
type Package struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Project is a parsed manifest. Fields are populated once by the Reader
// and must not be modified afterwards; cached instances are shared.
type Project struct {
	Name    string  `json:"name" yaml:"name"`
	Path    string  `json:"path" yaml:"path"`
	Dialect Dialect `json:"dialect" yaml:"dialect"`

	Sdk             string   `json:"sdk,omitempty" yaml:"sdk,omitempty"`
	OutputType      string   `json:"outputType,omitempty" yaml:"outputType,omitempty"`
	TargetFramework string   `json:"targetFramework,omitempty" yaml:"targetFramework,omitempty"`
	ProjectTypes    []string `json:"projectTypeGuids,omitempty" yaml:"projectTypeGuids,omitempty"`
	IsTestProject   bool     `json:"isTestProject,omitempty" yaml:"isTestProject,omitempty"`

	Packages            []Package `json:"packages,omitempty" yaml:"packages,omitempty"`
	ProjectReferences   []string  `json:"projectReferences,omitempty" yaml:"projectReferences,omitempty"`
	FrameworkReferences []string  `json:"frameworkReferences,omitempty" yaml:"frameworkReferences,omitempty"`
}

// Dir returns the directory containing the manifest.
func (p *Project) Dir() string {
	return filepath.Dir(p.Path)
}

// HasPackage reports whether a package with the given name is declared.
// Package names are case-insensitive.
func (p *Project) HasPackage(name string) bool {
	for _, pkg := range p.Packages {
		if strings.EqualFold(pkg.Name, name) {
			return true
		}
	}
	return false
}

// HasPackagePrefix reports whether any package name starts with prefix.
func (p *Project) HasPackagePrefix(prefix string) bool {
	prefix = strings.ToLower(prefix)
	for _, pkg := range p.Packages {
		if strings.HasPrefix(strings.ToLower(pkg.Name), prefix) {
			return true
		}
	}
	return false
}

// HasFrameworkReference reports whether an assembly reference starts with prefix.
func (p *Project) HasFrameworkReference(prefix string) bool {
	prefix = strings.ToLower(prefix)
	for _, ref := range p.FrameworkReferences {
		if strings.HasPrefix(strings.ToLower(ref), prefix) {
			return true
		}
	}
	return false
}

// HasProjectType reports whether the legacy type GUID list contains guid.
func (p *Project) HasProjectType(guid string) bool {
	guid = normalizeGUID(guid)
	for _, g := range p.ProjectTypes {
		if g == guid {
			return true
		}
	}
	return false
}

// IsExecutable reports whether the project builds an executable.
func (p *Project) IsExecutable() bool {
	switch strings.ToLower(p.OutputType) {
	case "exe", "winexe":
		return true
	}
	return false
}

// normalizeGUID lower-cases a GUID and strips braces.
func normalizeGUID(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), "{}"))
}
