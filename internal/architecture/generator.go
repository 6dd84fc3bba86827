package architecture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"archdoc/internal/errors"
	"archdoc/internal/manifest"
	"archdoc/internal/slogutil"
)

// Assembler composes parsed manifests into a Model.
type Assembler struct {
	detector        *Detector
	followLibraries bool
	limits          *ModelLimits
	logger          *slog.Logger
}

// AssemblerOptions configures an Assembler
type AssemblerOptions struct {
	Signatures      []Signature // evaluated before the built-in table
	FollowLibraries bool
	Limits          *ModelLimits
}

// NewAssembler creates an assembler
func NewAssembler(opts AssemblerOptions, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	limits := opts.Limits
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Assembler{
		detector:        NewDetector(opts.Signatures),
		followLibraries: opts.FollowLibraries,
		limits:          limits,
		logger:          logger,
	}
}

// Input is everything the assembler needs for one run
type Input struct {
	// Root makes manifest paths in the model relative
	Root        string
	System      SystemIdentity
	Projects    []*manifest.Project
	Declaration *Declaration
}

// Assemble builds the model. It never fails; an empty container set yields
// a model whose Insufficient() is true plus a warning.
func (a *Assembler) Assemble(in Input) (*Model, []errors.Warning) {
	var warnings []errors.Warning

	projects := make([]*manifest.Project, 0, len(in.Projects))
	for _, p := range in.Projects {
		if IsTestProject(p) {
			a.logger.Debug("Excluding test project", "name", p.Name)
			continue
		}
		projects = append(projects, p)
	}

	containers := a.containers(projects)
	// Externals are detected across every project, test projects included.
	detection := a.detector.Detect(in.Projects)
	externals := detection.Systems

	if in.Declaration != nil {
		externals = a.applyDeclaration(in.Declaration, containers, detection)
	}

	builder := NewRelationshipBuilder(projects, containers, detection, a.followLibraries)
	rels := builder.Build(containers)

	m := &Model{
		system:     in.System,
		containers: relativize(in.Root, containers),
		externals:  externals,
	}
	m.relationships = dropDangling(m, rels)
	for _, ext := range externals {
		m.context = append(m.context, Relationship{From: SystemID, To: ext.Key, Verb: VerbUses, Protocol: ext.Protocol})
	}
	m.fingerprint = computeFingerprint(m)

	if m.Insufficient() {
		warnings = append(warnings, errors.NewWarning(errors.InsufficientModel, in.System.Name,
			"no deployable containers found in %d manifests", len(in.Projects)))
	}
	for _, msg := range a.limits.check(m) {
		warnings = append(warnings, errors.NewWarning(errors.InsufficientModel, in.System.Name, "%s", msg))
	}

	a.logger.Info("Assembled architecture model",
		"system", m.system.Name,
		"containers", len(m.containers),
		"externals", len(m.externals),
		"relationships", len(m.relationships),
		"fingerprint", m.ShortFingerprint(),
	)
	return m, warnings
}

// containers classifies projects and keeps the non-library ones, assigning unique IDs.
func (a *Assembler) containers(projects []*manifest.Project) []Container {
	var out []Container
	taken := map[string]bool{SystemID: true}
	for _, p := range projects {
		cls := Classify(p)
		a.logger.Debug("Classified project", "name", p.Name, "kind", string(cls.Kind), "rule", cls.Rule)
		if cls.Kind == KindLibrary {
			continue
		}
		id := containerID(p.Name)
		for n := 2; taken[id]; n++ {
			id = containerID(p.Name) + "_" + strconv.Itoa(n)
		}
		taken[id] = true
		out = append(out, Container{
			ID:           id,
			Name:         p.Name,
			Kind:         cls.Kind,
			Technology:   cls.Technology,
			ManifestPath: p.Path,
		})
	}
	return out
}

// applyDeclaration merges declared externals into the detection, attaching
// usage to the named containers, and returns the merged system list.
func (a *Assembler) applyDeclaration(decl *Declaration, containers []Container, det *Detection) []ExternalSystem {
	byName := make(map[string]string, len(containers))
	for _, c := range containers {
		byName[strings.ToLower(c.Name)] = c.ManifestPath
	}
	for _, d := range decl.Externals {
		sys := d.system()
		if _, exists := det.Lookup(sys.Key); !exists {
			det.Systems = append(det.Systems, sys)
		}
		for _, user := range d.UsedBy {
			path, ok := byName[strings.ToLower(user)]
			if !ok {
				a.logger.Warn("Declared external references unknown container", "external", sys.Key, "container", user)
				continue
			}
			det.Usage[path] = appendUnique(det.Usage[path], sys.Key)
		}
	}
	return det.Systems
}

// dropDangling removes edges whose ends do not resolve in m.
func dropDangling(m *Model, rels []Relationship) []Relationship {
	out := make([]Relationship, 0, len(rels))
	for _, r := range rels {
		if _, ok := m.Container(r.From); !ok {
			continue
		}
		_, toContainer := m.Container(r.To)
		_, toExternal := m.ExternalSystem(r.To)
		if !toContainer && !toExternal {
			continue
		}
		out = append(out, r)
	}
	return out
}

func relativize(root string, containers []Container) []Container {
	out := make([]Container, len(containers))
	for i, c := range containers {
		out[i] = c
		if root == "" {
			continue
		}
		if rel, err := filepath.Rel(root, c.ManifestPath); err == nil {
			out[i].ManifestPath = filepath.ToSlash(rel)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// Declaration is the optional SYSTEM.toml file:
//
//	name = "Shop"
//	description = "Online storefront"
//
//	[[externals]]
//	category = "api"
//	vendor = "payments"
//	name = "Payment Gateway"
//	usedBy = ["Web"]
type Declaration struct {
	Name        string             `toml:"name"`
	Description string             `toml:"description"`
	Externals   []DeclaredExternal `toml:"externals"`
}

// DeclaredExternal is an external system that no package reveals
type DeclaredExternal struct {
	Category    string   `toml:"category"`
	Vendor      string   `toml:"vendor"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Technology  string   `toml:"technology"`
	Protocol    string   `toml:"protocol"`
	UsedBy      []string `toml:"usedBy"`
}

func (d DeclaredExternal) system() ExternalSystem {
	cat, _ := ParseCategory(d.Category)
	name := d.Name
	if name == "" {
		name = d.Vendor
	}
	return ExternalSystem{
		Key:         string(cat) + ":" + d.Vendor,
		Name:        name,
		Category:    cat,
		Description: d.Description,
		Technology:  d.Technology,
		Protocol:    d.Protocol,
	}
}

// LoadDeclaration reads a SYSTEM.toml declaration. A missing file returns nil, nil.
func LoadDeclaration(path string) (*Declaration, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var decl Declaration
	if err := toml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, ext := range decl.Externals {
		if _, ok := ParseCategory(ext.Category); !ok {
			return nil, fmt.Errorf("%s: externals[%d]: unknown category %q", path, i, ext.Category)
		}
		if ext.Vendor == "" {
			return nil, fmt.Errorf("%s: externals[%d]: vendor is required", path, i)
		}
	}
	return &decl, nil
}

// ResolveIdentity picks the system identity: declaration, then configured
// values, then the solution or directory name.
func ResolveIdentity(fallbackName, cfgName, cfgDescription string, decl *Declaration) SystemIdentity {
	id := SystemIdentity{Name: fallbackName}
	if cfgName != "" {
		id.Name = cfgName
	}
	if cfgDescription != "" {
		id.Description = cfgDescription
	}
	if decl != nil {
		if decl.Name != "" {
			id.Name = decl.Name
		}
		if decl.Description != "" {
			id.Description = decl.Description
		}
	}
	if id.Name == "" {
		id.Name = "System"
	}
	return id
}
