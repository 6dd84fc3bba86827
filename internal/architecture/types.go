package architecture

import (
	"regexp"
	"strings"
)

// Category groups external systems on the diagram
type Category string

const (
	// CategoryDatabase is a relational or document store
	CategoryDatabase Category = "database"
	// CategoryAPI is a remote HTTP API
	CategoryAPI Category = "api"
	// CategoryQueue is a message broker or queue service
	CategoryQueue Category = "queue"
	// CategoryStorage is blob/object storage
	CategoryStorage Category = "storage"
)

// ParseCategory validates a category string
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryDatabase:
		return CategoryDatabase, true
	case CategoryAPI:
		return CategoryAPI, true
	case CategoryQueue:
		return CategoryQueue, true
	case CategoryStorage:
		return CategoryStorage, true
	}
	return "", false
}

// ContainerKind is the deployable role of a project
type ContainerKind string

const (
	KindWeb         ContainerKind = "web"
	KindService     ContainerKind = "service"
	KindPersistence ContainerKind = "persistence"
	KindLibrary     ContainerKind = "library"
)

// Relationship verbs and the protocol label of project-to-project edges
const (
	VerbUses         = "uses"
	VerbDependsOn    = "depends on"
	ProtocolInternal = "internal"
)

// SystemID identifies the system itself in context relationships
const SystemID = "system"

// SystemIdentity names the system being documented
type SystemIdentity struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ExternalSystem is a dependency outside the codebase, keyed by "category:vendor"
type ExternalSystem struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Technology  string   `json:"technology,omitempty" yaml:"technology,omitempty"`
	Protocol    string   `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// Container is a deployable unit derived from one manifest
type Container struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Kind         ContainerKind `json:"kind" yaml:"kind"`
	Technology   string        `json:"technology,omitempty" yaml:"technology,omitempty"`
	ManifestPath string        `json:"manifestPath" yaml:"manifestPath"`
}

// Relationship is a directed edge between containers, externals or the system
type Relationship struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Verb     string `json:"verb" yaml:"verb"`
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

func (r Relationship) key() string {
	return r.From + "->" + r.To
}

// VerbFor returns the relationship verb for edges leaving a container of kind k.
func VerbFor(k ContainerKind) string {
	if k == KindService {
		return VerbDependsOn
	}
	return VerbUses
}

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

// containerID derives a diagram-safe identifier from a manifest name.
func containerID(name string) string {
	id := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if id == "" {
		id = "container"
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "c_" + id
	}
	return id
}
