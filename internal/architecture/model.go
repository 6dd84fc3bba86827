package architecture

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Model is an assembled architecture snapshot. It is immutable; accessors return copies.
type Model struct {
	system        SystemIdentity
	containers    []Container
	externals     []ExternalSystem
	relationships []Relationship
	context       []Relationship
	fingerprint   string
}

// Snapshot is the serializable form of a Model
type Snapshot struct {
	System               SystemIdentity   `json:"system" yaml:"system"`
	Containers           []Container      `json:"containers" yaml:"containers"`
	ExternalSystems      []ExternalSystem `json:"externalSystems" yaml:"externalSystems"`
	Relationships        []Relationship   `json:"relationships" yaml:"relationships"`
	ContextRelationships []Relationship   `json:"contextRelationships" yaml:"contextRelationships"`
	Fingerprint          string           `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// System returns the system identity
func (m *Model) System() SystemIdentity { return m.system }

// Containers returns the emitted containers (no libraries, no tests)
func (m *Model) Containers() []Container {
	return append([]Container(nil), m.containers...)
}

// ExternalSystems returns one entry per distinct key
func (m *Model) ExternalSystems() []ExternalSystem {
	return append([]ExternalSystem(nil), m.externals...)
}

// Relationships returns the container-level edges
func (m *Model) Relationships() []Relationship {
	return append([]Relationship(nil), m.relationships...)
}

// ContextRelationships returns the system→external edges
func (m *Model) ContextRelationships() []Relationship {
	return append([]Relationship(nil), m.context...)
}

// Insufficient reports whether there is nothing to draw at container level.
func (m *Model) Insufficient() bool {
	return len(m.containers) == 0
}

// Fingerprint is a BLAKE2b-256 digest of the model's canonical JSON encoding.
func (m *Model) Fingerprint() string { return m.fingerprint }

// ShortFingerprint returns the first 12 hex characters of the fingerprint.
func (m *Model) ShortFingerprint() string {
	if len(m.fingerprint) < 12 {
		return m.fingerprint
	}
	return m.fingerprint[:12]
}

// Container looks up a container by ID
func (m *Model) Container(id string) (Container, bool) {
	for _, c := range m.containers {
		if c.ID == id {
			return c, true
		}
	}
	return Container{}, false
}

// ExternalSystem looks up an external system by key
func (m *Model) ExternalSystem(key string) (ExternalSystem, bool) {
	for _, e := range m.externals {
		if e.Key == key {
			return e, true
		}
	}
	return ExternalSystem{}, false
}

// Snapshot returns a serializable copy.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		System:               m.system,
		Containers:           m.Containers(),
		ExternalSystems:      m.ExternalSystems(),
		Relationships:        m.Relationships(),
		ContextRelationships: m.ContextRelationships(),
		Fingerprint:          m.fingerprint,
	}
}

// computeFingerprint hashes the snapshot without its fingerprint field.
// Slices are already in deterministic order, so the encoding is stable.
func computeFingerprint(m *Model) string {
	snap := m.Snapshot()
	snap.Fingerprint = ""
	data, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
