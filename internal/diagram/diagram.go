package diagram

import (
	"fmt"
	"time"

	"archdoc/internal/architecture"
)

// File stems of the generated diagrams
const (
	ContextName   = "system-context"
	ContainerName = "containers"
)

// SourceExt is the extension of diagram descriptions
const SourceExt = ".puml"

// Diagram is one serialized diagram description.
type Diagram struct {
	Name   string
	Kind   Kind
	Title  string
	Source []byte
}

// FileName returns the description file name
func (d *Diagram) FileName() string {
	return d.Name + SourceExt
}

// Artifact is a written description and, when rendering succeeded, its image.
type Artifact struct {
	Diagram      *Diagram  `json:"-"`
	Name         string    `json:"name"`
	SourcePath   string    `json:"sourcePath"`
	RenderedPath string    `json:"renderedPath,omitempty"`
	SourceTime   time.Time `json:"sourceTime"`
	RenderedTime time.Time `json:"renderedTime,omitempty"`
	SourceBytes  int64     `json:"sourceBytes"`
	ImageBytes   int64     `json:"imageBytes,omitempty"`
}

// Rendered reports whether a visual artifact exists
func (a *Artifact) Rendered() bool {
	return a.RenderedPath != ""
}

// Serialize produces the system context and container diagrams for m.
func Serialize(m *architecture.Model) ([]*Diagram, error) {
	ctx, err := Context(m)
	if err != nil {
		return nil, err
	}
	ctr, err := Containers(m)
	if err != nil {
		return nil, err
	}
	return []*Diagram{ctx, ctr}, nil
}

// Context renders the system with its external systems.
func Context(m *architecture.Model) (*Diagram, error) {
	sys := m.System()
	b := NewBuilder(ContextName, KindContext, fmt.Sprintf("System Context diagram for %s", sys.Name)).
		Fingerprint(m.Fingerprint())

	b.Entity("System", architecture.SystemID, sys.Name, sys.Description)
	for _, ext := range m.ExternalSystems() {
		addExternal(b, ext)
	}
	for _, r := range m.ContextRelationships() {
		b.Rel(r.From, r.To, r.Verb, r.Protocol)
	}
	return b.Build()
}

// Containers renders the containers inside the system boundary, plus the
// external systems they use. An insufficient model yields a notice.
func Containers(m *architecture.Model) (*Diagram, error) {
	sys := m.System()
	b := NewBuilder(ContainerName, KindContainer, fmt.Sprintf("Container diagram for %s", sys.Name)).
		Fingerprint(m.Fingerprint())

	if m.Insufficient() {
		b.Entity("System", architecture.SystemID, sys.Name, sys.Description)
		b.Notice("No deployable containers were found. Only libraries or test projects were discovered.")
		return b.Build()
	}

	b.OpenBoundary("System_Boundary", architecture.SystemID, sys.Name)
	for _, c := range m.Containers() {
		macro := "Container"
		if c.Kind == architecture.KindPersistence {
			macro = "ContainerDb"
		}
		b.Entity(macro, containerKey(c.ID), c.Name, c.Technology, description(c.Kind))
	}
	b.CloseBoundary()

	for _, ext := range m.ExternalSystems() {
		addExternal(b, ext)
	}
	for _, r := range m.Relationships() {
		to := r.To
		if _, ok := m.Container(r.To); ok {
			to = containerKey(r.To)
		}
		b.Rel(containerKey(r.From), to, r.Verb, r.Protocol)
	}
	return b.Build()
}

// containerKey namespaces container IDs so they cannot collide with
// external keys or the system itself.
func containerKey(id string) string {
	return "container_" + id
}

func addExternal(b *Builder, ext architecture.ExternalSystem) {
	macro := "System_Ext"
	switch ext.Category {
	case architecture.CategoryDatabase:
		macro = "SystemDb_Ext"
	case architecture.CategoryQueue:
		macro = "SystemQueue_Ext"
	}
	b.Entity(macro, ext.Key, ext.Name, ext.Description)
}

func description(k architecture.ContainerKind) string {
	switch k {
	case architecture.KindWeb:
		return "Web application"
	case architecture.KindService:
		return "Background service"
	case architecture.KindPersistence:
		return "Schema and data access"
	}
	return ""
}
