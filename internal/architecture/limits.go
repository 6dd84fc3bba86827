package architecture

import (
	"fmt"
)

// ModelLimits bounds what a single diagram can show legibly.
// Exceeding a limit is reported as a warning; nothing is dropped.
type ModelLimits struct {
	MaxContainers      int
	MaxExternalSystems int
	MaxRelationships   int
}

// DefaultLimits returns the default model limits
func DefaultLimits() *ModelLimits {
	return &ModelLimits{
		MaxContainers:      30,
		MaxExternalSystems: 20,
		MaxRelationships:   120,
	}
}

// check returns one message per exceeded limit
func (l *ModelLimits) check(m *Model) []string {
	var msgs []string
	if l.MaxContainers > 0 && len(m.containers) > l.MaxContainers {
		msgs = append(msgs, fmt.Sprintf("container count %d exceeds %d; the diagram may be hard to read", len(m.containers), l.MaxContainers))
	}
	if l.MaxExternalSystems > 0 && len(m.externals) > l.MaxExternalSystems {
		msgs = append(msgs, fmt.Sprintf("external system count %d exceeds %d", len(m.externals), l.MaxExternalSystems))
	}
	if l.MaxRelationships > 0 && len(m.relationships) > l.MaxRelationships {
		msgs = append(msgs, fmt.Sprintf("relationship count %d exceeds %d", len(m.relationships), l.MaxRelationships))
	}
	return msgs
}
