package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"archdoc/internal/architecture"
	"archdoc/internal/errors"
	"archdoc/internal/pipeline"
	"archdoc/internal/render"
	"archdoc/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *RunResponseCLI:
		return formatRunHuman(v)
	case *ModelResponseCLI:
		return formatModelHuman(v)
	case *render.DoctorReport:
		return formatDoctorHuman(v)
	case *HistoryResponseCLI:
		return formatHistoryHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

// RunResponseCLI summarizes a generate run
type RunResponseCLI struct {
	RunID           string             `json:"runId" yaml:"runId"`
	System          string             `json:"system" yaml:"system"`
	Fingerprint     string             `json:"fingerprint" yaml:"fingerprint"`
	ModelChanged    bool               `json:"modelChanged" yaml:"modelChanged"`
	Outcome         storage.RunOutcome `json:"outcome" yaml:"outcome"`
	Containers      int                `json:"containers" yaml:"containers"`
	Externals       int                `json:"externals" yaml:"externals"`
	Relationships   int                `json:"relationships" yaml:"relationships"`
	Diagrams        []DiagramCLI       `json:"diagrams" yaml:"diagrams"`
	Document        string             `json:"document,omitempty" yaml:"document,omitempty"`
	DocumentUpdated bool               `json:"documentUpdated" yaml:"documentUpdated"`
	Mirrored        []string           `json:"mirrored,omitempty" yaml:"mirrored,omitempty"`
	Warnings        []errors.Warning   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DurationMs      int64              `json:"durationMs" yaml:"durationMs"`
}

// DiagramCLI is one diagram of a run
type DiagramCLI struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
	Image  string `json:"image,omitempty" yaml:"image,omitempty"`
	Size   int64  `json:"imageBytes,omitempty" yaml:"imageBytes,omitempty"`
	State  string `json:"state" yaml:"state"`
}

func newRunResponse(run *pipeline.Run, document string) *RunResponseCLI {
	resp := &RunResponseCLI{
		RunID:           run.ID,
		Outcome:         run.Outcome,
		Document:        relPath(run.Root, document),
		DocumentUpdated: run.DocumentUpdated,
		Mirrored:        run.Mirrored,
		Warnings:        run.Warnings,
		ModelChanged:    run.ModelChanged(),
		DurationMs:      run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}
	if m := run.Model; m != nil {
		resp.System = m.System().Name
		resp.Fingerprint = m.ShortFingerprint()
		resp.Containers = len(m.Containers())
		resp.Externals = len(m.ExternalSystems())
		resp.Relationships = len(m.Relationships())
	}
	for _, a := range run.Artifacts {
		d := DiagramCLI{
			Name:   a.Name,
			Source: relPath(run.Root, a.SourcePath),
			State:  string(render.StateSourceOnly),
		}
		if outcome, ok := run.Renders[a.Name]; ok {
			d.State = string(outcome.State)
		}
		if a.Rendered() {
			d.Image = relPath(run.Root, a.RenderedPath)
			d.Size = a.ImageBytes
			d.State = string(render.StateRendered)
		}
		resp.Diagrams = append(resp.Diagrams, d)
	}
	return resp
}

func formatRunHuman(resp *RunResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(pterm.Bold.Sprintf("%s architecture", resp.System) + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Run:     %s\n", resp.RunID))
	b.WriteString(fmt.Sprintf("Model:   %s (%d containers, %d external systems, %d relationships)",
		resp.Fingerprint, resp.Containers, resp.Externals, resp.Relationships))
	if !resp.ModelChanged {
		b.WriteString(", unchanged since last run")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Outcome: %s\n\n", outcomeLabel(resp.Outcome)))

	data := pterm.TableData{{"Diagram", "Source", "Image", "State"}}
	for _, d := range resp.Diagrams {
		image := "-"
		if d.Image != "" {
			image = fmt.Sprintf("%s (%s)", d.Image, humanize.Bytes(uint64(d.Size)))
		}
		data = append(data, []string{d.Name, d.Source, image, d.State})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	b.WriteString(table + "\n")

	if resp.Document != "" {
		status := "unchanged"
		if resp.DocumentUpdated {
			status = "updated"
		}
		b.WriteString(fmt.Sprintf("\nDocument: %s (%s)\n", resp.Document, status))
	}
	if len(resp.Mirrored) > 0 {
		b.WriteString(fmt.Sprintf("Mirrored: %d objects\n", len(resp.Mirrored)))
	}
	writeWarnings(&b, resp.Warnings)
	return b.String(), nil
}

func outcomeLabel(o storage.RunOutcome) string {
	switch o {
	case storage.OutcomeRendered:
		return pterm.Green(string(o))
	case storage.OutcomePartial, storage.OutcomeSourceOnly:
		return pterm.Yellow(string(o))
	default:
		return pterm.Red(string(o))
	}
}

func writeWarnings(b *strings.Builder, warnings []errors.Warning) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\nWarnings (%d):\n", len(warnings)))
	for _, w := range warnings {
		b.WriteString(fmt.Sprintf("  %s %s\n", pterm.Yellow("⚠"), w.String()))
	}
}

// ModelResponseCLI is the output of the model command
type ModelResponseCLI struct {
	Model    architecture.Snapshot `json:"model" yaml:"model"`
	Warnings []errors.Warning      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func formatModelHuman(resp *ModelResponseCLI) (string, error) {
	var b strings.Builder
	m := resp.Model

	b.WriteString(pterm.Bold.Sprint(m.System.Name) + "\n")
	if m.System.Description != "" {
		b.WriteString(m.System.Description + "\n")
	}
	b.WriteString(strings.Repeat("=", 60) + "\n")
	if len(m.Fingerprint) > 12 {
		b.WriteString(fmt.Sprintf("Fingerprint: %s\n", m.Fingerprint[:12]))
	}

	sections := []struct {
		title string
		data  pterm.TableData
	}{
		{"Containers", containerRows(m.Containers)},
		{"External systems", externalRows(m.ExternalSystems)},
		{"Relationships", relationshipRows(m.Relationships)},
	}
	for _, s := range sections {
		b.WriteString(fmt.Sprintf("\n%s (%d)\n", s.title, len(s.data)-1))
		if len(s.data) == 1 {
			b.WriteString("  (none)\n")
			continue
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(s.data).Srender()
		if err != nil {
			return "", err
		}
		b.WriteString(table + "\n")
	}

	writeWarnings(&b, resp.Warnings)
	return b.String(), nil
}

func containerRows(cs []architecture.Container) pterm.TableData {
	data := pterm.TableData{{"ID", "Name", "Kind", "Technology", "Manifest"}}
	for _, c := range cs {
		data = append(data, []string{c.ID, c.Name, string(c.Kind), c.Technology, c.ManifestPath})
	}
	return data
}

func externalRows(es []architecture.ExternalSystem) pterm.TableData {
	data := pterm.TableData{{"Key", "Name", "Category", "Protocol"}}
	for _, e := range es {
		data = append(data, []string{e.Key, e.Name, string(e.Category), e.Protocol})
	}
	return data
}

func relationshipRows(rs []architecture.Relationship) pterm.TableData {
	data := pterm.TableData{{"From", "To", "Verb", "Protocol"}}
	for _, r := range rs {
		data = append(data, []string{r.From, r.To, r.Verb, r.Protocol})
	}
	return data
}

// formatDoctorHuman formats a doctor report in human-readable format
func formatDoctorHuman(resp *render.DoctorReport) (string, error) {
	var b strings.Builder

	b.WriteString("archdoc Doctor\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	healthIcon := pterm.Green("✓")
	healthText := "Local rendering available"
	if !resp.Healthy {
		healthIcon = pterm.Red("✗")
		healthText = "Local rendering unavailable"
	}
	b.WriteString(fmt.Sprintf("%s %s (tier: %s)\n\n", healthIcon, healthText, resp.Tier))

	for _, check := range resp.Checks {
		var icon string
		switch check.Status {
		case render.StatusPass:
			icon = pterm.Green("✓")
		case render.StatusWarn:
			icon = pterm.Yellow("⚠")
		case render.StatusFail:
			icon = pterm.Red("✗")
		default:
			icon = "?"
		}

		b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, check.Name, check.Message))

		if len(check.SuggestedFixes) > 0 {
			b.WriteString("  Suggested fixes:\n")
			for _, fix := range check.SuggestedFixes {
				b.WriteString(fmt.Sprintf("    - %s\n", fix.Description))
				if fix.Command != "" {
					b.WriteString(fmt.Sprintf("      $ %s\n", fix.Command))
				}
			}
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// HistoryResponseCLI lists ledger runs
type HistoryResponseCLI struct {
	Runs []storage.RunRecord `json:"runs" yaml:"runs"`
}

func formatHistoryHuman(resp *HistoryResponseCLI) (string, error) {
	if len(resp.Runs) == 0 {
		return "No runs recorded yet.", nil
	}
	data := pterm.TableData{{"Run", "Started", "System", "Outcome", "Containers", "Warnings", "Duration"}}
	for _, r := range resp.Runs {
		data = append(data, []string{
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			r.SystemName,
			outcomeLabel(r.Outcome),
			fmt.Sprintf("%d", r.Containers),
			fmt.Sprintf("%d", r.Warnings),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
