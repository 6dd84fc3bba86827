// Package diagram serializes an architecture model into C4-PlantUML descriptions.
package diagram

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
)

// Kind identifies which view a diagram shows
type Kind string

const (
	KindContext   Kind = "context"
	KindContainer Kind = "container"
)

// Builder collects entity and relationship lines for one diagram.
// Relationships whose ends were never added are discarded at Build time.
type Builder struct {
	name        string
	kind        Kind
	title       string
	fingerprint string

	entities      []string
	relationships []pendingRel
	notices       []string

	aliases map[string]string // entity key → alias
	taken   map[string]bool
	depth   int
}

type pendingRel struct {
	from, to        string
	label, protocol string
}

// NewBuilder starts a diagram with the given file stem, kind and title.
func NewBuilder(name string, kind Kind, title string) *Builder {
	return &Builder{
		name:    name,
		kind:    kind,
		title:   title,
		aliases: make(map[string]string),
		taken:   make(map[string]bool),
	}
}

// Fingerprint records the model fingerprint as a comment in the output.
func (b *Builder) Fingerprint(fp string) *Builder {
	b.fingerprint = fp
	return b
}

// Entity adds a C4 element such as Container or SystemDb_Ext and returns
// the alias it was given. key must be unique within the diagram.
func (b *Builder) Entity(macro, key, label string, args ...string) string {
	alias := b.alias(key)
	parts := []string{alias, quote(label)}
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	b.line(fmt.Sprintf("%s(%s)", macro, strings.Join(parts, ", ")))
	return alias
}

// OpenBoundary starts a boundary block; entities added until CloseBoundary are nested.
func (b *Builder) OpenBoundary(macro, key, label string) string {
	alias := b.alias(key)
	b.line(fmt.Sprintf("%s(%s, %s) {", macro, alias, quote(label)))
	b.depth++
	return alias
}

// CloseBoundary ends the innermost boundary block.
func (b *Builder) CloseBoundary() {
	if b.depth == 0 {
		return
	}
	b.depth--
	b.line("}")
}

// Rel records an edge between two entity keys.
func (b *Builder) Rel(fromKey, toKey, label, protocol string) {
	b.relationships = append(b.relationships, pendingRel{from: fromKey, to: toKey, label: label, protocol: protocol})
}

// Notice adds a floating note, used for degraded diagrams.
func (b *Builder) Notice(text string) {
	b.notices = append(b.notices, text)
}

// Build renders the collected lines into the skeleton.
func (b *Builder) Build() (*Diagram, error) {
	for b.depth > 0 {
		b.CloseBoundary()
	}

	var rels []string
	for _, r := range b.relationships {
		from, okFrom := b.aliases[r.from]
		to, okTo := b.aliases[r.to]
		if !okFrom || !okTo {
			continue
		}
		if r.protocol != "" {
			rels = append(rels, fmt.Sprintf("Rel(%s, %s, %s, %s)", from, to, quote(r.label), quote(r.protocol)))
		} else {
			rels = append(rels, fmt.Sprintf("Rel(%s, %s, %s)", from, to, quote(r.label)))
		}
	}

	notices := make([]string, len(b.notices))
	for i, n := range b.notices {
		notices[i] = sanitize(n)
	}

	data := skeletonData{
		Name:          b.name,
		Include:       includeFor(b.kind),
		Title:         sanitize(b.title),
		Fingerprint:   b.fingerprint,
		Entities:      b.entities,
		Relationships: rels,
		Notices:       notices,
	}

	var buf bytes.Buffer
	if err := skeleton.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s diagram: %w", b.kind, err)
	}

	return &Diagram{
		Name:   b.name,
		Kind:   b.kind,
		Title:  b.title,
		Source: buf.Bytes(),
	}, nil
}

func (b *Builder) line(s string) {
	b.entities = append(b.entities, strings.Repeat("  ", b.depth)+s)
}

var aliasChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// alias derives a PlantUML identifier for key, unique within the diagram.
func (b *Builder) alias(key string) string {
	if a, ok := b.aliases[key]; ok {
		return a
	}
	base := strings.Trim(aliasChars.ReplaceAllString(key, "_"), "_")
	if base == "" || (base[0] >= '0' && base[0] <= '9') {
		base = "e_" + base
	}
	a := base
	for n := 2; b.taken[a]; n++ {
		a = base + "_" + strconv.Itoa(n)
	}
	b.taken[a] = true
	b.aliases[key] = a
	return a
}

// sanitize flattens text to a single line safe inside a quoted macro argument.
func sanitize(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", `"`, "'").Replace(s)
	return strings.TrimSpace(s)
}

func quote(s string) string {
	return `"` + sanitize(s) + `"`
}

func includeFor(k Kind) string {
	if k == KindContext {
		return "C4/C4_Context"
	}
	return "C4/C4_Container"
}

type skeletonData struct {
	Name          string
	Include       string
	Title         string
	Fingerprint   string
	Entities      []string
	Relationships []string
	Notices       []string
}

var skeleton = template.Must(template.New("c4").Parse(skeletonTemplate))

const skeletonTemplate = `@startuml {{.Name}}
!include <{{.Include}}>
{{if .Fingerprint}}' model {{.Fingerprint}}
{{end}}
title {{.Title}}

{{range .Entities}}{{.}}
{{end}}{{if .Relationships}}
{{range .Relationships}}{{.}}
{{end}}{{end}}{{range $i, $n := .Notices}}
note as N{{$i}}
  {{$n}}
end note
{{end}}
SHOW_LEGEND()
@enduml
`
