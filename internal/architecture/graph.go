package architecture

import (
	"archdoc/internal/manifest"
)

// RelationshipBuilder derives edges from project references and detected externals.
type RelationshipBuilder struct {
	projects        map[string]*manifest.Project // by manifest path, tests excluded
	containers      map[string]Container         // by manifest path
	detection       *Detection
	followLibraries bool
}

// NewRelationshipBuilder indexes the inputs. projects must already exclude test projects.
func NewRelationshipBuilder(projects []*manifest.Project, containers []Container, det *Detection, followLibraries bool) *RelationshipBuilder {
	b := &RelationshipBuilder{
		projects:        make(map[string]*manifest.Project, len(projects)),
		containers:      make(map[string]Container, len(containers)),
		detection:       det,
		followLibraries: followLibraries,
	}
	for _, p := range projects {
		b.projects[p.Path] = p
	}
	for _, c := range containers {
		b.containers[c.ManifestPath] = c
	}
	if b.detection == nil {
		b.detection = &Detection{Usage: map[string][]string{}}
	}
	return b
}

// Build returns container→container and container→external edges in
// container order. Duplicate source/target pairs collapse to one edge.
func (b *RelationshipBuilder) Build(containers []Container) []Relationship {
	var rels []Relationship
	seen := make(map[string]bool)

	add := func(r Relationship) {
		if r.From == r.To || seen[r.key()] {
			return
		}
		seen[r.key()] = true
		rels = append(rels, r)
	}

	for _, c := range containers {
		verb := VerbFor(c.Kind)
		targets, externals := b.reach(c.ManifestPath)

		for _, t := range targets {
			add(Relationship{From: c.ID, To: t.ID, Verb: verb, Protocol: ProtocolInternal})
		}
		for _, key := range externals {
			protocol := ""
			if ext, ok := b.detection.Lookup(key); ok {
				protocol = ext.Protocol
			}
			add(Relationship{From: c.ID, To: key, Verb: verb, Protocol: protocol})
		}
	}
	return rels
}

// reach walks the references of the manifest at path. Containers stop the
// walk; libraries are traversed when followLibraries is set and contribute
// their external usage. Missing manifests and test projects are skipped.
func (b *RelationshipBuilder) reach(path string) ([]Container, []string) {
	var (
		targets   []Container
		externals []string
	)
	visited := map[string]bool{path: true}
	seenExt := make(map[string]bool)

	addExternals := func(p string) {
		for _, key := range b.detection.Usage[p] {
			if !seenExt[key] {
				seenExt[key] = true
				externals = append(externals, key)
			}
		}
	}
	addExternals(path)

	var walk func(p *manifest.Project)
	walk = func(p *manifest.Project) {
		for _, ref := range p.ProjectReferences {
			if visited[ref] {
				continue
			}
			visited[ref] = true

			if c, ok := b.containers[ref]; ok {
				targets = append(targets, c)
				continue
			}
			lib, ok := b.projects[ref]
			if !ok || !b.followLibraries {
				continue
			}
			addExternals(ref)
			walk(lib)
		}
	}

	if p, ok := b.projects[path]; ok {
		walk(p)
	}
	return targets, externals
}
