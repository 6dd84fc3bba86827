package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"archdoc/internal/errors"
	"archdoc/internal/paths"
)

// msbuild2003 is the XML namespace of legacy project files.
const msbuild2003 = "http://schemas.microsoft.com/developer/msbuild/2003"

type xmlProject struct {
	XMLName        xml.Name           `xml:"Project"`
	Sdk            string             `xml:"Sdk,attr"`
	ToolsVersion   string             `xml:"ToolsVersion,attr"`
	SdkElements    []xmlSdk           `xml:"Sdk"`
	Imports        []xmlImport        `xml:"Import"`
	PropertyGroups []xmlPropertyGroup `xml:"PropertyGroup"`
	ItemGroups     []xmlItemGroup     `xml:"ItemGroup"`
}

type xmlSdk struct {
	Name string `xml:"Name,attr"`
}

type xmlImport struct {
	Sdk string `xml:"Sdk,attr"`
}

type xmlPropertyGroup struct {
	AssemblyName           string `xml:"AssemblyName"`
	OutputType             string `xml:"OutputType"`
	TargetFramework        string `xml:"TargetFramework"`
	TargetFrameworks       string `xml:"TargetFrameworks"`
	TargetFrameworkVersion string `xml:"TargetFrameworkVersion"`
	ProjectTypeGuids       string `xml:"ProjectTypeGuids"`
	IsTestProject          string `xml:"IsTestProject"`
}

type xmlItemGroup struct {
	PackageReferences []xmlPackageReference `xml:"PackageReference"`
	ProjectReferences []xmlInclude          `xml:"ProjectReference"`
	References        []xmlReference        `xml:"Reference"`
}

type xmlPackageReference struct {
	Include     string `xml:"Include,attr"`
	Update      string `xml:"Update,attr"`
	Version     string `xml:"Version,attr"`
	VersionElem string `xml:"Version"`
}

type xmlInclude struct {
	Include string `xml:"Include,attr"`
}

type xmlReference struct {
	Include  string `xml:"Include,attr"`
	HintPath string `xml:"HintPath"`
}

type xmlPackagesConfig struct {
	Packages []struct {
		ID      string `xml:"id,attr"`
		Version string `xml:"version,attr"`
	} `xml:"package"`
}

// hintSegment matches a package-cache folder such as "Npgsql.4.1.0" or "Foo.Bar.2.0.0-beta1".
var hintSegment = regexp.MustCompile(`^(.+?)\.(\d+(?:\.\d+)+(?:-[\w.]+)?)$`)

// frameworkFolder matches target-framework and framework-version folders
// such as "v4.7.2", "net45" or "netstandard2.0", which look like
// "<name>.<version>" but never name a package.
var frameworkFolder = regexp.MustCompile(`(?i)^(v\d+(\.\d+)*|net\d+.*|netstandard\d.*|netcoreapp\d.*|\.netframework|reference assemblies)$`)

// parseProject decodes a manifest. path must be absolute and cleaned.
func parseProject(path string, data []byte) (*Project, error) {
	var raw xmlProject
	if err := xml.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), &raw); err != nil {
		if strings.Contains(err.Error(), "expected element type <Project>") {
			return nil, errors.NewArchError(errors.ManifestUnsupported,
				fmt.Sprintf("%s: root element is not <Project>", path), err)
		}
		return nil, errors.NewArchError(errors.ManifestMalformed,
			fmt.Sprintf("%s: invalid XML", path), err)
	}

	proj := &Project{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}

	switch {
	case raw.Sdk != "":
		proj.Dialect = DialectSDK
		proj.Sdk = firstSdk(raw.Sdk)
	case len(raw.SdkElements) > 0 && raw.SdkElements[0].Name != "":
		proj.Dialect = DialectSDK
		proj.Sdk = raw.SdkElements[0].Name
	case importedSdk(raw.Imports) != "":
		proj.Dialect = DialectSDK
		proj.Sdk = importedSdk(raw.Imports)
	case raw.XMLName.Space == msbuild2003 || raw.ToolsVersion != "":
		proj.Dialect = DialectLegacy
	default:
		return nil, errors.NewArchError(errors.ManifestUnsupported,
			fmt.Sprintf("%s: neither an SDK-style nor an msbuild/2003 project", path), nil)
	}

	applyProperties(proj, raw.PropertyGroups)

	seenRefs := make(map[string]bool)
	for _, group := range raw.ItemGroups {
		for _, ref := range group.PackageReferences {
			name := strings.TrimSpace(ref.Include)
			if name == "" {
				// <PackageReference Update="..."> only adjusts an existing item
				continue
			}
			version := strings.TrimSpace(ref.Version)
			if version == "" {
				version = strings.TrimSpace(ref.VersionElem)
			}
			proj.addPackage(name, version)
		}
		for _, ref := range group.ProjectReferences {
			target := paths.ResolveManifestReference(proj.Dir(), ref.Include)
			if target == "" || seenRefs[target] {
				continue
			}
			seenRefs[target] = true
			proj.ProjectReferences = append(proj.ProjectReferences, target)
		}
		for _, ref := range group.References {
			proj.addAssemblyReference(ref)
		}
	}

	return proj, nil
}

func applyProperties(proj *Project, groups []xmlPropertyGroup) {
	for _, pg := range groups {
		if proj.OutputType == "" {
			proj.OutputType = strings.TrimSpace(pg.OutputType)
		}
		if proj.TargetFramework == "" {
			switch {
			case pg.TargetFramework != "":
				proj.TargetFramework = strings.TrimSpace(pg.TargetFramework)
			case pg.TargetFrameworks != "":
				proj.TargetFramework = strings.TrimSpace(strings.Split(pg.TargetFrameworks, ";")[0])
			case pg.TargetFrameworkVersion != "":
				proj.TargetFramework = strings.TrimSpace(pg.TargetFrameworkVersion)
			}
		}
		if len(proj.ProjectTypes) == 0 && pg.ProjectTypeGuids != "" {
			for _, g := range strings.Split(pg.ProjectTypeGuids, ";") {
				if g = normalizeGUID(g); g != "" {
					proj.ProjectTypes = append(proj.ProjectTypes, g)
				}
			}
		}
		if strings.EqualFold(strings.TrimSpace(pg.IsTestProject), "true") {
			proj.IsTestProject = true
		}
	}
}

// addAssemblyReference handles a legacy <Reference>. With a hint path the
// package identity comes from the package-cache folder; without one it is a
// framework assembly.
func (p *Project) addAssemblyReference(ref xmlReference) {
	include := strings.TrimSpace(ref.Include)
	if include == "" {
		return
	}
	name, version := splitAssemblyName(include)

	if ref.HintPath == "" {
		p.FrameworkReferences = append(p.FrameworkReferences, name)
		return
	}
	if pkg, ok := PackageFromHintPath(ref.HintPath); ok {
		p.addPackage(pkg.Name, pkg.Version)
		return
	}
	if isFrameworkHintPath(ref.HintPath) {
		p.FrameworkReferences = append(p.FrameworkReferences, name)
		return
	}
	p.addPackage(name, version)
}

func (p *Project) addPackage(name, version string) {
	for i, existing := range p.Packages {
		if strings.EqualFold(existing.Name, name) {
			if existing.Version == "" {
				p.Packages[i].Version = version
			}
			return
		}
	}
	p.Packages = append(p.Packages, Package{Name: name, Version: version})
}

// PackageFromHintPath extracts name and version from the first path segment
// shaped like "<name>.<version>". Framework folders are skipped.
func PackageFromHintPath(hint string) (Package, bool) {
	for _, seg := range hintSegments(hint) {
		if frameworkFolder.MatchString(seg) {
			continue
		}
		if m := hintSegment.FindStringSubmatch(seg); m != nil {
			return Package{Name: m[1], Version: m[2]}, true
		}
	}
	return Package{}, false
}

// isFrameworkHintPath reports whether hint points into an installed .NET
// Framework reference-assembly directory.
func isFrameworkHintPath(hint string) bool {
	for _, seg := range hintSegments(hint) {
		switch strings.ToLower(seg) {
		case "reference assemblies", ".netframework":
			return true
		}
	}
	return false
}

func hintSegments(hint string) []string {
	return strings.Split(strings.ReplaceAll(strings.TrimSpace(hint), "\\", "/"), "/")
}

// splitAssemblyName splits "Name, Version=1.0.0.0, Culture=neutral" into
// name and version.
func splitAssemblyName(include string) (string, string) {
	parts := strings.Split(include, ",")
	name := strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "Version") {
			return name, strings.TrimSpace(kv[1])
		}
	}
	return name, ""
}

// parsePackagesConfig decodes a legacy packages.config file.
func parsePackagesConfig(data []byte) ([]Package, error) {
	var raw xmlPackagesConfig
	if err := xml.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), &raw); err != nil {
		return nil, err
	}
	pkgs := make([]Package, 0, len(raw.Packages))
	for _, p := range raw.Packages {
		if p.ID == "" {
			continue
		}
		pkgs = append(pkgs, Package{Name: p.ID, Version: p.Version})
	}
	return pkgs, nil
}

// firstSdk returns the first entry of a "A;B" or "Name/Version" Sdk attribute.
func firstSdk(s string) string {
	s = strings.TrimSpace(strings.Split(s, ";")[0])
	if i := strings.Index(s, "/"); i > 0 {
		s = s[:i]
	}
	return s
}

func importedSdk(imports []xmlImport) string {
	for _, imp := range imports {
		if imp.Sdk != "" {
			return firstSdk(imp.Sdk)
		}
	}
	return ""
}
