package persist

import (
	"fmt"
	"path/filepath"
	"strings"

	"archdoc/internal/diagram"
)

var sectionTitles = map[string]string{
	diagram.ContextName:   "System Context",
	diagram.ContainerName: "Containers",
}

// SectionBody renders the markdown under the diagrams heading. Per-diagram
// subheadings use subLevel, which must be deeper than the section heading so
// they stay inside the section. Links are relative to docDir. The body
// carries no timestamps.
func SectionBody(docDir, format, fingerprint string, subLevel int, artifacts []*diagram.Artifact) string {
	if subLevel < 2 {
		subLevel = 2
	}
	if subLevel > 6 {
		subLevel = 6
	}
	marker := strings.Repeat("#", subLevel)

	var b strings.Builder
	if fingerprint != "" {
		short := fingerprint
		if len(short) > 12 {
			short = short[:12]
		}
		fmt.Fprintf(&b, "<!-- generated by archdoc; model %s -->\n", short)
	}

	for _, a := range artifacts {
		title := sectionTitles[a.Name]
		if title == "" {
			title = a.Name
		}
		fmt.Fprintf(&b, "\n%s %s\n\n", marker, title)

		source := relLink(docDir, a.SourcePath)
		if a.Rendered() {
			alt := title
			if a.Diagram != nil && a.Diagram.Title != "" {
				alt = a.Diagram.Title
			}
			fmt.Fprintf(&b, "![%s](%s)\n\n", alt, relLink(docDir, a.RenderedPath))
			fmt.Fprintf(&b, "Source: [%s](%s)\n", filepath.Base(a.SourcePath), source)
			continue
		}
		fmt.Fprintf(&b, "The diagram has not been rendered. Source: [%s](%s)\n\n", filepath.Base(a.SourcePath), source)
		fmt.Fprintf(&b, "Render it manually with:\n\n```sh\njava -jar plantuml.jar -t%s -charset UTF-8 %s\n```\n", format, source)
	}
	return b.String()
}

func relLink(base, target string) string {
	if rel, err := filepath.Rel(base, target); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(target)
}

// MaxSectionLevel is the deepest heading that can own a section; its
// subheadings need one more level.
const MaxSectionLevel = 5

// NormalizeHeading returns heading as an ATX heading of level 1 to
// MaxSectionLevel, and that level. Plain text, and headings too deep to
// hold subheadings, become level-2 headings.
func NormalizeHeading(heading string) (string, int) {
	heading = strings.TrimSpace(heading)
	level := headingLevel(heading)
	if level < 1 || level > MaxSectionLevel || strings.TrimSpace(heading[level:]) == "" {
		text := strings.TrimSpace(strings.TrimLeft(heading, "#"))
		if level == 0 {
			text = heading
		}
		return strings.TrimSpace("## " + text), 2
	}
	return heading, level
}

// ReplaceSection replaces the section introduced by heading with body. The
// section ends at the next heading of the same or a higher level outside
// fenced code. A missing section is appended. Other content is preserved.
func ReplaceSection(doc, heading, body string) string {
	heading, level := NormalizeHeading(heading)

	section := heading + "\n\n" + strings.Trim(body, "\n") + "\n"

	lines := strings.SplitAfter(doc, "\n")
	start, end := -1, len(lines)
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isFence(trimmed) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if start < 0 {
			if trimmed == heading {
				start = i
			}
			continue
		}
		if l := headingLevel(trimmed); l > 0 && l <= level {
			end = i
			break
		}
	}

	if start < 0 {
		out := strings.TrimRight(doc, "\n")
		if out != "" {
			out += "\n\n"
		}
		return out + section
	}

	before := strings.Join(lines[:start], "")
	after := strings.Join(lines[end:], "")
	if after != "" {
		section += "\n"
	}
	return before + section + after
}

// headingLevel returns the ATX heading level of line, or 0.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0
	}
	if n < len(line) && line[n] != ' ' && line[n] != '\t' {
		return 0
	}
	return n
}

func isFence(line string) bool {
	return strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")
}
